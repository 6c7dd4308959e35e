package viewed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"michatta/internal/logging"
)

const upsertItemSQL = `INSERT INTO viewed_items (id, timestamp) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp`

func validateItem(id string, ts int64) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	}
	if ts < 0 {
		return fmt.Errorf("%w: %q has negative timestamp %d", ErrInvalidItem, id, ts)
	}
	return nil
}

// GetAll returns every viewed item and warms the cache with them, oldest
// first so the most recent entries survive eviction.
func (s *Store) GetAll(ctx context.Context) map[string]int64 {
	ctx = ensureContext(ctx)
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	ordered, err := s.scanItems(ctx)
	if err != nil {
		s.readFailed(ctx, "get_all", err)
		return map[string]int64{}
	}
	items := make(map[string]int64, len(ordered))
	for _, item := range ordered {
		items[item.id] = item.timestamp
		s.cache.Set(item.id, item.timestamp)
	}
	return items
}

type itemRow struct {
	id        string
	timestamp int64
}

func (s *Store) scanItems(ctx context.Context) ([]itemRow, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var out []itemRow
	err = retryOnBusy(ctx, func() error {
		out = out[:0]
		rows, err := db.QueryContext(ctx, "SELECT id, timestamp FROM viewed_items ORDER BY timestamp ASC, id ASC")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var row itemRow
			if err := rows.Scan(&row.id, &row.timestamp); err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("scan viewed items: %w", err)
	}
	return out, nil
}

// GetBatch returns the timestamps of the ids that have been viewed. Cache
// hits are served directly; misses are read individually and cached. Unknown
// ids are omitted.
func (s *Store) GetBatch(ctx context.Context, ids []string) map[string]int64 {
	ctx = ensureContext(ctx)
	result := make(map[string]int64, len(ids))
	var misses []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if ts, ok := s.cache.Get(id); ok {
			result[id] = ts
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return result
	}

	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	db, err := s.handle(ctx)
	if err != nil {
		s.readFailed(ctx, "get_batch", err)
		return result
	}
	for _, id := range misses {
		if _, seen := result[id]; seen {
			continue
		}
		ts, found, err := s.readItem(ctx, db, id)
		if err != nil {
			s.readFailed(ctx, "get_batch", err)
			continue
		}
		if found {
			result[id] = ts
			s.cache.Set(id, ts)
		}
	}
	return result
}

// Get returns the timestamp for id, if viewed.
func (s *Store) Get(ctx context.Context, id string) (int64, bool) {
	if id == "" {
		return 0, false
	}
	ts, ok := s.GetBatch(ctx, []string{id})[id]
	return ts, ok
}

func (s *Store) readItem(ctx context.Context, db *sql.DB, id string) (int64, bool, error) {
	var ts int64
	err := retryOnBusy(ctx, func() error {
		return db.QueryRowContext(ctx, "SELECT timestamp FROM viewed_items WHERE id = ?", id).Scan(&ts)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read viewed item %q: %w", id, err)
	}
	return ts, true, nil
}

// Put records id as viewed at ts (milliseconds since the epoch).
func (s *Store) Put(ctx context.Context, id string, ts int64) error {
	ctx = ensureContext(ctx)
	if err := validateItem(id, ts); err != nil {
		s.writeFailed(ctx, "put", err)
		return err
	}

	s.writeMu.Lock()
	err := s.execUpsert(ctx, map[string]int64{id: ts})
	if err == nil {
		s.cache.Set(id, ts)
	}
	s.writeMu.Unlock()

	if err != nil {
		err = fmt.Errorf("save viewed item: %w", err)
		s.writeFailed(ctx, "put", err)
		return err
	}
	s.log(ctx).Debug("saved viewed item", logging.String(logging.FieldItemID, id), logging.Int64("timestamp", ts))
	s.requestRefresh()
	return nil
}

// MarkViewed records id as viewed now.
func (s *Store) MarkViewed(ctx context.Context, id string) error {
	return s.Put(ctx, id, s.now().UnixMilli())
}

// PutBatch upserts every entry in one transaction. An invalid entry rejects
// the whole batch before anything is written.
func (s *Store) PutBatch(ctx context.Context, items map[string]int64) error {
	ctx = ensureContext(ctx)
	if len(items) == 0 {
		return nil
	}
	for _, id := range sortedIDs(items) {
		if err := validateItem(id, items[id]); err != nil {
			err = fmt.Errorf("batch rejected: %w", err)
			s.writeFailed(ctx, "put_batch", err)
			return err
		}
	}

	s.writeMu.Lock()
	err := s.execUpsert(ctx, items)
	if err == nil {
		s.cache.SetMultiple(items)
	}
	s.writeMu.Unlock()

	if err != nil {
		err = fmt.Errorf("save viewed items: %w", err)
		s.writeFailed(ctx, "put_batch", err)
		return err
	}
	s.log(ctx).Debug("saved viewed items", logging.Int("item_count", len(items)))
	s.requestRefresh()
	return nil
}

func (s *Store) execUpsert(ctx context.Context, items map[string]int64) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	ids := sortedIDs(items)
	return retryOnBusy(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, upsertItemSQL)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id, items[id]); err != nil {
				return fmt.Errorf("upsert %q: %w", id, err)
			}
		}
		return tx.Commit()
	})
}

// Count returns the number of viewed items.
func (s *Store) Count(ctx context.Context) int {
	ctx = ensureContext(ctx)
	db, err := s.handle(ctx)
	if err != nil {
		s.readFailed(ctx, "count", err)
		return 0
	}
	var count int
	err = retryOnBusy(ctx, func() error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM viewed_items").Scan(&count)
	})
	if err != nil {
		s.readFailed(ctx, "count", fmt.Errorf("count viewed items: %w", err))
		return 0
	}
	return count
}

// Clear deletes every viewed item and empties the cache. Settings are kept.
func (s *Store) Clear(ctx context.Context) error {
	ctx = ensureContext(ctx)

	s.writeMu.Lock()
	removed, err := s.execClear(ctx)
	if err == nil {
		s.cache.Clear()
	}
	s.writeMu.Unlock()

	if err != nil {
		err = fmt.Errorf("clear viewed items: %w", err)
		s.writeFailed(ctx, "clear", err)
		return err
	}
	s.log(ctx).Info("cleared viewed items",
		logging.String(logging.FieldEventType, "viewed_items_cleared"),
		logging.Int64("removed", removed))
	s.requestRefresh()
	return nil
}

func (s *Store) execClear(ctx context.Context) (int64, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}
	var removed int64
	err = retryOnBusy(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, "DELETE FROM viewed_items")
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return tx.Commit()
	})
	return removed, err
}

func sortedIDs(items map[string]int64) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
