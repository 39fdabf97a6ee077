// Package history persists one StageRunRecord per stage invocation and reads
// them back as a condensed "memory" digest for later prompts.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haricheung/grantflow/internal/types"
)

// DigestLimit bounds how many past runs a digest covers.
const DigestLimit = 20

// Backend names accepted by Open.
const (
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
)

// Query selects records. Empty fields match everything; Limit <= 0 means no limit.
type Query struct {
	Agent types.Stage
	Topic string
	Limit int
}

// Store is an append-only run-history backend.
type Store interface {
	// Record persists rec, assigning ID and CreatedAt when missing.
	Record(ctx context.Context, rec types.StageRunRecord) error
	// Recent returns matching records, newest first.
	Recent(ctx context.Context, q Query) ([]types.StageRunRecord, error)
	Close() error
}

// Open opens the backend named by backend at path. An empty backend means LevelDB.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch backend {
	case "", BackendLevelDB:
		return OpenLevel(path, logger)
	case BackendSQLite:
		return OpenSQL(path, logger)
	default:
		return nil, fmt.Errorf("history: unknown backend %q (want %s or %s)", backend, BackendLevelDB, BackendSQLite)
	}
}

// stamp fills the identity fields a caller may leave empty.
func stamp(rec types.StageRunRecord) types.StageRunRecord {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Feedback == nil {
		rec.Feedback = []string{}
	}
	return rec
}

// Memory turns a Store into the digest provider consumed by stages.
type Memory struct {
	store Store
	limit int
}

// NewMemory returns a Memory reading at most DigestLimit runs per digest.
func NewMemory(s Store) *Memory {
	return &Memory{store: s, limit: DigestLimit}
}

// Digest returns the formatted history of stage runs on topic, or "" when
// there is none.
func (m *Memory) Digest(ctx context.Context, stage types.Stage, topic string) (string, error) {
	recs, err := m.store.Recent(ctx, Query{Agent: stage, Topic: topic, Limit: m.limit})
	if err != nil {
		return "", fmt.Errorf("history: digest %s: %w", stage, err)
	}
	return FormatDigest(recs), nil
}
