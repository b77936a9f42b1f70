package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/radieske/wager-platform/pkg/contracts/events"
)

//go:embed schema.sql
var schemaSQL string

// PostgresRepo grava o histórico de eventos consumidos (wager_event_log)
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply event log schema: %w", err)
	}
	return nil
}

// Append insere o evento; a mesma (partição, offset) relida após rebalance é ignorada.
// Devolve false quando a linha já existia.
func (r *PostgresRepo) Append(ctx context.Context, e events.WagerEvent, partition int, offset int64) (bool, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	const q = `
		INSERT INTO wager_event_log
		  (wager_id, event_type, payload, kafka_partition, kafka_offset, event_ts)
		VALUES
		  ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (kafka_partition, kafka_offset) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, q, e.WagerID, e.Type, payload, partition, offset, e.Ts)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// History devolve os eventos de uma aposta em ordem cronológica
func (r *PostgresRepo) History(ctx context.Context, wagerID string, limit int) ([]events.WagerEvent, error) {
	const q = `
		SELECT payload FROM wager_event_log
		WHERE wager_id = $1
		ORDER BY event_ts, id
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, q, wagerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.WagerEvent
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e events.WagerEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode event log row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
