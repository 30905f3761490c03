// Package output persists the simulation event stream and order history
// to Postgres.
package output

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dispatchsim/dispatchsim/internal/models"
)

type PostgresOutput struct {
	pool *pgxpool.Pool
}

func NewPostgresOutput(ctx context.Context, config *models.DatabaseConfig) (*PostgresOutput, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	return &PostgresOutput{pool: pool}, nil
}

// WriteMessage stores one event as a jsonb row in the table derived from
// its topic.
func (p *PostgresOutput) WriteMessage(topic string, msg []byte) error {
	table := topicToTable(topic)
	query := fmt.Sprintf("INSERT INTO %s (payload) VALUES ($1)", table)
	_, err := p.pool.Exec(context.Background(), query, msg)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// ArchiveOrders bulk-copies a run's order history, delivered and not.
func (p *PostgresOutput) ArchiveOrders(ctx context.Context, runID string, orders []models.Order) error {
	rows := make([][]interface{}, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []interface{}{
			runID, o.ID, o.Pickup, o.Dropoff, o.CreatedTick, o.DeliveredTick, string(o.Status),
		})
	}

	_, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"order_history"},
		[]string{"run_id", "order_id", "pickup", "dropoff", "created_tick", "delivered_tick", "status"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to archive orders: %w", err)
	}
	return nil
}

func (p *PostgresOutput) Close() error {
	p.pool.Close()
	return nil
}

func topicToTable(topic string) string {
	return strings.ReplaceAll(strings.ToLower(topic), "-", "_")
}
