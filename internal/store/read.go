package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetTransform returns the transform stored under key and counts the hit.
// Returns found=false when there is none.
func (s *Store) GetTransform(ctx context.Context, key string) (t Transform, found bool, err error) {
	var loaders, emitted string
	err = s.db.QueryRowContext(ctx, `
		SELECT key, resource, code, loaders, emitted, seq, hits
		FROM transforms
		WHERE key = ?
	`, key).Scan(&t.Key, &t.Resource, &t.Code, &loaders, &emitted, &t.Seq, &t.Hits)
	if errors.Is(err, sql.ErrNoRows) {
		return Transform{}, false, nil
	}
	if err != nil {
		return Transform{}, false, fmt.Errorf("get transform: %w", err)
	}

	if t.Loaders, err = unmarshalLoaders(loaders); err != nil {
		return Transform{}, false, fmt.Errorf("get transform: %w", err)
	}
	if t.Emitted, err = unmarshalEmitted(emitted); err != nil {
		return Transform{}, false, fmt.Errorf("get transform: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE transforms SET hits = hits + 1 WHERE key = ?`, key); err != nil {
		return Transform{}, false, fmt.Errorf("get transform: count hit: %w", err)
	}
	t.Hits++
	return t, true, nil
}

// Builds returns up to limit build records, newest first.
// A limit of zero or less returns all of them.
func (s *Store) Builds(ctx context.Context, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, entry_id, output, modules, assets, cache_hits, cache_misses, duration_ns, seq
		FROM builds
		ORDER BY seq DESC, run_id ASC COLLATE BINARY
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var b Build
		var duration int64
		if err := rows.Scan(&b.RunID, &b.EntryID, &b.Output, &b.Modules, &b.Assets,
			&b.CacheHits, &b.CacheMisses, &duration, &b.Seq); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		b.Duration = time.Duration(duration)
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	return builds, nil
}

// Stats summarises the cache contents.
type Stats struct {
	Transforms int   `json:"transforms"`
	Hits       int64 `json:"hits"`
	CodeBytes  int64 `json:"code_bytes"`
	Builds     int   `json:"builds"`
}

// Stats returns counts over both tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(hits), 0), COALESCE(SUM(LENGTH(CAST(code AS BLOB))), 0)
		FROM transforms
	`).Scan(&st.Transforms, &st.Hits, &st.CodeBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("transform stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM builds`).Scan(&st.Builds); err != nil {
		return Stats{}, fmt.Errorf("build stats: %w", err)
	}
	return st, nil
}
