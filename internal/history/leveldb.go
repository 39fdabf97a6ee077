package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/haricheung/grantflow/internal/types"
)

// LevelDB key prefix scheme; "|" separates parts so colons in titles are safe.
// <ts> is the zero-padded UnixNano of CreatedAt, so lexical order is time order.
//
//	r|<id>                          → StageRunRecord JSON   (primary record)
//	c|<ts>|<id>                     → nil                   (chronological index)
//	a|<agent>|<ts>|<id>             → nil                   (per-stage index)
//	t|<agent>|<topic>|<ts>|<id>     → nil                   (per-stage, per-topic index)
const (
	prefixRecord = "r|"
	prefixChrono = "c|"
	prefixAgent  = "a|"
	prefixTopic  = "t|"
)

// LevelStore is the LevelDB-backed run history. Writes are synchronous so a
// record is visible to the very next digest.
type LevelStore struct {
	db     *leveldb.DB
	logger *slog.Logger
}

// OpenLevel opens (or creates) a LevelDB database in directory path.
func OpenLevel(path string, logger *slog.Logger) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("history: open leveldb at %s (another grantflow process may hold the lock): %w", path, err)
	}
	return &LevelStore{db: db, logger: logger}, nil
}

// Record writes rec and its three index entries in one batch.
//
// Expectations:
//   - Assigns ID and CreatedAt if missing
//   - Writes the primary record and chronological, stage and stage/topic index keys atomically
//   - Returns the LevelDB error unchanged in meaning (wrapped) on failure
func (s *LevelStore) Record(_ context.Context, rec types.StageRunRecord) error {
	rec = stamp(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: marshal record: %w", err)
	}
	ts := tsKey(rec)
	batch := new(leveldb.Batch)
	batch.Put([]byte(prefixRecord+rec.ID), data)
	batch.Put([]byte(prefixChrono+ts+"|"+rec.ID), nil)
	batch.Put([]byte(agentPrefix(rec.Agent)+ts+"|"+rec.ID), nil)
	batch.Put([]byte(topicPrefix(rec.Agent, rec.Topic)+ts+"|"+rec.ID), nil)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("history: persist record %s: %w", rec.ID, err)
	}
	s.logger.Debug("[HISTORY] persisted run record", "id", rec.ID, "agent", rec.Agent, "topic", rec.Topic, "success", rec.Success)
	return nil
}

// Recent scans the narrowest index for q backwards from the newest key.
//
// Expectations:
//   - Returns newest first, at most q.Limit records when Limit > 0
//   - Uses the stage/topic index when both are set, the stage index when only Agent is set
//   - Filters by topic on the chronological index when only Topic is set
//   - Returns an empty slice (not error) when nothing matches
func (s *LevelStore) Recent(ctx context.Context, q Query) ([]types.StageRunRecord, error) {
	var prefix string
	switch {
	case q.Agent != "" && q.Topic != "":
		prefix = topicPrefix(q.Agent, q.Topic)
	case q.Agent != "":
		prefix = agentPrefix(q.Agent)
	default:
		prefix = prefixChrono
	}

	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	out := []types.StageRunRecord{}
	for ok := iter.Last(); ok; ok = iter.Prev() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.fetch(idFromIndexKey(iter))
		if err != nil {
			s.logger.Warn("[HISTORY] dangling index entry", "key", string(iter.Key()), "error", err)
			continue
		}
		if q.Topic != "" && rec.Topic != q.Topic {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, iter.Error()
}

// Close releases the database lock.
func (s *LevelStore) Close() error {
	return s.db.Close()
}

func (s *LevelStore) fetch(id string) (types.StageRunRecord, error) {
	data, err := s.db.Get([]byte(prefixRecord+id), nil)
	if err != nil {
		return types.StageRunRecord{}, err
	}
	var rec types.StageRunRecord
	return rec, json.Unmarshal(data, &rec)
}

// ---------------------------------------------------------------------------
// Key helpers
// ---------------------------------------------------------------------------

func tsKey(rec types.StageRunRecord) string {
	return fmt.Sprintf("%020d", rec.CreatedAt.UnixNano())
}

func agentPrefix(agent types.Stage) string {
	return prefixAgent + safeKeyPart(string(agent)) + "|"
}

func topicPrefix(agent types.Stage, topic string) string {
	return prefixTopic + safeKeyPart(string(agent)) + "|" + safeKeyPart(topic) + "|"
}

// idFromIndexKey returns the trailing id segment of an index key.
func idFromIndexKey(iter iterator.Iterator) string {
	key := string(iter.Key())
	return key[strings.LastIndex(key, "|")+1:]
}

// safeKeyPart replaces "|" with "_" so LevelDB keys parse unambiguously.
func safeKeyPart(s string) string {
	return strings.ReplaceAll(s, "|", "_")
}
