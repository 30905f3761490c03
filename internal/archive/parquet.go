// Package archive writes a run's order history as a parquet file, either
// to the local filesystem or through a cloud writer. The in-memory order
// list grows for as long as a world lives; archiving it and recreating
// the world is the retirement path for long sessions.
package archive

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/dispatchsim/dispatchsim/internal/cloudwriter"
	"github.com/dispatchsim/dispatchsim/internal/models"
)

type OrderRecord struct {
	RunID         string `parquet:"name=run_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	OrderID       int32  `parquet:"name=order_id,type=INT32"`
	Pickup        int32  `parquet:"name=pickup,type=INT32"`
	Dropoff       int32  `parquet:"name=dropoff,type=INT32"`
	CreatedTick   int64  `parquet:"name=created_tick,type=INT64"`
	DeliveredTick int64  `parquet:"name=delivered_tick,type=INT64"`
	Status        string `parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
}

// WriteLocal archives the order history to a local parquet file.
func WriteLocal(path, runID string, orders []models.Order) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating parquet file %s: %w", path, err)
	}
	return writeAll(fw, runID, orders)
}

// WriteCloud archives the order history through a cloud writer factory,
// e.g. to S3.
func WriteCloud(factory cloudwriter.CloudWriterFactory, bucket, key, runID string, orders []models.Order) error {
	cw, err := factory.NewWriter(bucket, key)
	if err != nil {
		return fmt.Errorf("creating cloud writer for %s/%s: %w", bucket, key, err)
	}
	return writeAll(newCloudParquetFile(cw), runID, orders)
}

func writeAll(fw source.ParquetFile, runID string, orders []models.Order) error {
	pw, err := writer.NewParquetWriter(fw, new(OrderRecord), 2)
	if err != nil {
		fw.Close()
		return fmt.Errorf("creating parquet writer: %w", err)
	}

	for _, o := range orders {
		rec := OrderRecord{
			RunID:         runID,
			OrderID:       int32(o.ID),
			Pickup:        int32(o.Pickup),
			Dropoff:       int32(o.Dropoff),
			CreatedTick:   int64(o.CreatedTick),
			DeliveredTick: int64(o.DeliveredTick),
			Status:        string(o.Status),
		}
		if err := pw.Write(rec); err != nil {
			fw.Close()
			return fmt.Errorf("writing order record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalizing parquet file: %w", err)
	}
	return fw.Close()
}

// cloudParquetFile adapts a CloudWriter to the parquet source interface.
// The writer emits sequentially, so seeking and reading are unsupported.
type cloudParquetFile struct {
	cloudWriter cloudwriter.CloudWriter
	offset      int64
}

func newCloudParquetFile(cw cloudwriter.CloudWriter) *cloudParquetFile {
	return &cloudParquetFile{cloudWriter: cw}
}

func (c *cloudParquetFile) Open(name string) (source.ParquetFile, error) {
	// cloud objects are created implicitly on first write
	return c, nil
}

func (c *cloudParquetFile) Create(name string) (source.ParquetFile, error) {
	return c, nil
}

func (c *cloudParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		c.offset = offset
	case io.SeekCurrent:
		c.offset += offset
	case io.SeekEnd:
		return 0, fmt.Errorf("seek from end not supported for cloud storage")
	}
	return c.offset, nil
}

func (c *cloudParquetFile) Read(p []byte) (n int, err error) {
	return 0, fmt.Errorf("read not supported for cloud storage")
}

func (c *cloudParquetFile) Write(p []byte) (n int, err error) {
	return c.cloudWriter.Write(p)
}

func (c *cloudParquetFile) Close() error {
	return c.cloudWriter.Close()
}
