package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/haricheung/grantflow/internal/types"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var runColumns = []string{
	"id", "run_id", "agent", "topic", "iteration", "success", "score", "max_score",
	"input_tokens", "output_tokens", "duration_ms", "model", "stop_reason",
	"error_message", "summary", "feedback", "created_at",
}

// SQLStore keeps run history in a SQLite table.
type SQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQL opens (or creates) the SQLite database file at path and applies
// the embedded migrations.
func OpenSQL(path string, logger *slog.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create %s: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, logger: logger}, nil
}

// Record inserts one row.
func (s *SQLStore) Record(ctx context.Context, rec types.StageRunRecord) error {
	rec = stamp(rec)
	feedback, err := json.Marshal(rec.Feedback)
	if err != nil {
		return fmt.Errorf("history: marshal feedback: %w", err)
	}
	_, err = builder.Insert("stage_runs").
		Columns(runColumns...).
		Values(rec.ID, rec.RunID, string(rec.Agent), rec.Topic, rec.Iteration, rec.Success,
			rec.Score, rec.MaxScore, rec.InputTokens, rec.OutputTokens, rec.DurationMs,
			rec.Model, rec.StopReason, rec.ErrorMessage, rec.Summary, string(feedback),
			rec.CreatedAt.UnixNano()).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("history: insert record %s: %w", rec.ID, err)
	}
	s.logger.Debug("[HISTORY] persisted run record", "id", rec.ID, "agent", rec.Agent, "topic", rec.Topic, "success", rec.Success)
	return nil
}

// Recent returns matching rows newest first.
func (s *SQLStore) Recent(ctx context.Context, q Query) ([]types.StageRunRecord, error) {
	qb := builder.Select(runColumns...).From("stage_runs").OrderBy("created_at DESC", "rowid DESC")
	if q.Agent != "" {
		qb = qb.Where(sq.Eq{"agent": string(q.Agent)})
	}
	if q.Topic != "" {
		qb = qb.Where(sq.Eq{"topic": q.Topic})
	}
	if q.Limit > 0 {
		qb = qb.Limit(uint64(q.Limit))
	}
	rows, err := qb.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: query records: %w", err)
	}
	defer rows.Close()

	out := []types.StageRunRecord{}
	for rows.Next() {
		var (
			rec       types.StageRunRecord
			agent     string
			score     sql.NullFloat64
			maxScore  sql.NullFloat64
			feedback  string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &agent, &rec.Topic, &rec.Iteration, &rec.Success,
			&score, &maxScore, &rec.InputTokens, &rec.OutputTokens, &rec.DurationMs,
			&rec.Model, &rec.StopReason, &rec.ErrorMessage, &rec.Summary, &feedback, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan record: %w", err)
		}
		rec.Agent = types.Stage(agent)
		if score.Valid {
			rec.Score = &score.Float64
		}
		if maxScore.Valid {
			rec.MaxScore = &maxScore.Float64
		}
		if err := json.Unmarshal([]byte(feedback), &rec.Feedback); err != nil || rec.Feedback == nil {
			rec.Feedback = []string{}
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Migrations
// ---------------------------------------------------------------------------

type migration struct {
	version int
	name    string
	upSQL   string
}

func loadMigrations() ([]migration, error) {
	files, err := fs.ReadDir(migrationsFS, "sql")
	if err != nil {
		return nil, err
	}
	var out []migration
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := migrationsFS.ReadFile("sql/" + f.Name())
		if err != nil {
			return nil, err
		}
		var v int
		if _, err := fmt.Sscanf(f.Name(), "%d_", &v); err != nil {
			return nil, fmt.Errorf("invalid migration filename %s: %w", f.Name(), err)
		}
		out = append(out, migration{version: v, name: f.Name(), upSQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// migrate applies embedded migrations newer than schema_version in one transaction.
func migrate(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	var current int
	err = tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&current)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
		current = 0
	} else if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := tx.Exec(m.upSQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version = ?`, m.version); err != nil {
			return fmt.Errorf("bump schema_version: %w", err)
		}
		current = m.version
	}
	return tx.Commit()
}
