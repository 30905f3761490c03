package simulator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dispatchsim/dispatchsim/internal/models"
	producers "github.com/dispatchsim/dispatchsim/internal/simulator/producers"
)

// OutputDestination receives the per-tick message stream. Implementations
// exist for the console, local JSON files, Kafka and Postgres.
type OutputDestination interface {
	WriteMessage(topic string, msg []byte) error
	Close() error
}

type ConsoleOutput struct{}

func (c *ConsoleOutput) WriteMessage(topic string, msg []byte) error {
	output := fmt.Sprintf("[%s] %s\n", topic, string(msg))

	_, err := os.Stdout.Write([]byte(output))
	if err != nil {
		return fmt.Errorf("failed to write to stdout: %w", err)
	}
	_ = os.Stdout.Sync()
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }

// JSONOutput appends one JSON document per line to a file per topic
// under basePath/folder.
type JSONOutput struct {
	basePath string
	folder   string
	files    map[string]*os.File
}

func NewJSONOutput(basePath, folder string) *JSONOutput {
	return &JSONOutput{
		basePath: basePath,
		folder:   folder,
		files:    make(map[string]*os.File),
	}
}

func (j *JSONOutput) WriteMessage(topic string, msg []byte) error {
	file, ok := j.files[topic]
	if !ok {
		fullPath := filepath.Join(j.basePath, j.folder)
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return err
		}
		var err error
		file, err = os.Create(filepath.Join(fullPath, topic+".json"))
		if err != nil {
			return fmt.Errorf("failed to create file for topic %s: %w", topic, err)
		}
		j.files[topic] = file
	}

	if _, err := file.Write(msg); err != nil {
		return fmt.Errorf("failed to write message to topic %s: %w", topic, err)
	}
	_, err := file.WriteString("\n")
	return err
}

func (j *JSONOutput) Close() error {
	for _, file := range j.files {
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}

// NewKafkaOutput wires the snapshot stream to Kafka via the sarama
// producer.
func NewKafkaOutput(cfg *models.Config) (OutputDestination, error) {
	return producers.NewSaramaProducer(cfg.KafkaBrokerList)
}
