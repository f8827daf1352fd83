package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sketchsync/sketchsync/internal/core/op"
)

var _ Store = (*PostgresStore)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS operations (
	position     BIGSERIAL PRIMARY KEY,
	document_id  TEXT        NOT NULL,
	operation_id TEXT        NOT NULL,
	client_id    TEXT        NOT NULL,
	client_ts    BIGINT      NOT NULL,
	payload      JSONB       NOT NULL,
	UNIQUE (document_id, operation_id)
);
CREATE INDEX IF NOT EXISTS operations_doc_pos ON operations (document_id, position);
`

// PostgresStore is the durable log backend. The UNIQUE constraint on
// (document_id, operation_id) plus ON CONFLICT DO NOTHING gives the
// idempotent append the retry policy depends on.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger}, nil
}

// EnsureSchema creates the operations table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) AppendOperations(ctx context.Context, documentID, clientID string, batch []op.Operation) (AppendResult, error) {
	if documentID == "" {
		return AppendResult{}, ErrEmptyDocumentID
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return AppendResult{}, fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	applied := 0
	for _, o := range batch {
		payload, err := json.Marshal(o)
		if err != nil {
			return AppendResult{}, fmt.Errorf("encode operation %s: %w", o.ID, err)
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO operations (document_id, operation_id, client_id, client_ts, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (document_id, operation_id) DO NOTHING`,
			documentID, o.ID, clientID, o.Timestamp, payload,
		)
		if err != nil {
			return AppendResult{}, fmt.Errorf("%w: insert: %v", ErrUnavailable, err)
		}
		applied += int(tag.RowsAffected())
	}

	var last int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM operations WHERE document_id = $1`,
		documentID,
	).Scan(&last)
	if err != nil {
		return AppendResult{}, fmt.Errorf("%w: last position: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return AppendResult{}, fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}

	p.log.Debug("appended operations",
		zap.String("document", documentID),
		zap.Int("applied", applied),
		zap.Int64("lastPosition", last),
	)
	return AppendResult{LastPosition: last, AppliedCount: applied}, nil
}

func (p *PostgresStore) GetOperationsSince(ctx context.Context, documentID string, since int64, excludeClientID string) ([]Record, error) {
	if documentID == "" {
		return nil, ErrEmptyDocumentID
	}

	rows, err := p.pool.Query(ctx, `
		SELECT operation_id, client_id, client_ts, payload, position
		FROM operations
		WHERE document_id = $1 AND position > $2 AND ($3 = '' OR client_id <> $3)
		ORDER BY position`,
		documentID, since, excludeClientID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			payload []byte
		)
		if err := rows.Scan(&r.OperationID, &r.ClientID, &r.ClientTimestamp, &payload, &r.Position); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal(payload, &r.Operation); err != nil {
			// A corrupt payload must not stall every reader behind it.
			p.log.Warn("skipping undecodable operation payload",
				zap.String("document", documentID),
				zap.String("operation", r.OperationID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: rows: %v", ErrUnavailable, err)
	}
	return out, nil
}
