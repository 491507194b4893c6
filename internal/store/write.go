package store

import (
	"context"
	"fmt"
	"time"
)

// Transform is one cached loader pipeline result.
type Transform struct {
	Key      string            `json:"key"`
	Resource string            `json:"resource"`
	Code     string            `json:"code"`
	Loaders  []string          `json:"loaders"`
	Emitted  map[string]string `json:"emitted,omitempty"`
	Seq      int64             `json:"seq"`
	Hits     int64             `json:"hits"`
}

// Build is the record of one completed run.
type Build struct {
	RunID       string        `json:"run_id"`
	EntryID     string        `json:"entry_id"`
	Output      string        `json:"output"`
	Modules     int           `json:"modules"`
	Assets      int           `json:"assets"`
	CacheHits   int           `json:"cache_hits"`
	CacheMisses int           `json:"cache_misses"`
	Duration    time.Duration `json:"duration_ns"`
	Seq         int64         `json:"seq"`
}

// PutTransform inserts or replaces a transform. The row gets the next seq,
// so a rewritten entry counts as the newest. Hits reset to zero.
func (s *Store) PutTransform(ctx context.Context, t Transform) error {
	loaders, err := marshalLoaders(t.Loaders)
	if err != nil {
		return fmt.Errorf("put transform: %w", err)
	}
	emitted, err := marshalEmitted(t.Emitted)
	if err != nil {
		return fmt.Errorf("put transform: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transforms (key, resource, code, loaders, emitted, seq, hits)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM transforms), 0)
		ON CONFLICT(key) DO UPDATE SET
			resource = excluded.resource,
			code     = excluded.code,
			loaders  = excluded.loaders,
			emitted  = excluded.emitted,
			seq      = excluded.seq,
			hits     = 0
	`, t.Key, t.Resource, t.Code, loaders, emitted)
	if err != nil {
		return fmt.Errorf("put transform: %w", err)
	}
	return nil
}

// WriteBuild records a completed run.
// Uses ON CONFLICT(run_id) DO NOTHING - a run is recorded once.
func (s *Store) WriteBuild(ctx context.Context, b Build) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds
		(run_id, entry_id, output, modules, assets, cache_hits, cache_misses, duration_ns, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM builds))
		ON CONFLICT(run_id) DO NOTHING
	`,
		b.RunID,
		b.EntryID,
		b.Output,
		b.Modules,
		b.Assets,
		b.CacheHits,
		b.CacheMisses,
		int64(b.Duration),
	)
	if err != nil {
		return fmt.Errorf("write build: %w", err)
	}
	return nil
}

// Prune keeps the newest max transforms by seq and deletes the rest.
// A max of zero or less disables pruning. Returns the number deleted.
func (s *Store) Prune(ctx context.Context, max int) (int64, error) {
	if max <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM transforms
		WHERE key NOT IN (
			SELECT key FROM transforms ORDER BY seq DESC LIMIT ?
		)
	`, max)
	if err != nil {
		return 0, fmt.Errorf("prune transforms: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune transforms: %w", err)
	}
	return n, nil
}

// Clear deletes every transform and build record.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"transforms", "builds"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear: commit: %w", err)
	}
	return nil
}
