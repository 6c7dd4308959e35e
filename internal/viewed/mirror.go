package viewed

import (
	"context"
	"fmt"
	"time"

	"michatta/internal/legacy"
	"michatta/internal/logging"
)

const mirrorRefreshTimeout = 5 * time.Second

// startWorker launches the mirror goroutine. Called with openMu held.
func (s *Store) startWorker() {
	if s.mirror == nil || s.refresh != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.refresh = make(chan struct{}, 1)
	s.stopWorker = cancel
	s.workerDone = make(chan struct{})
	go s.runMirror(ctx, s.refresh, s.workerDone)
}

// requestRefresh schedules a mirror refresh without blocking. Pending
// requests collapse into one.
func (s *Store) requestRefresh() {
	s.openMu.Lock()
	ch := s.refresh
	s.openMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// RequestMirrorRefresh schedules a refresh, e.g. right after migration
// completes.
func (s *Store) RequestMirrorRefresh() {
	s.requestRefresh()
}

func (s *Store) runMirror(stop context.Context, refresh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-refresh:
			s.refreshMirror()
		case <-stop.Done():
			select {
			case <-refresh:
				s.refreshMirror()
			default:
			}
			return
		}
	}
}

// refreshMirror runs on its own deadline so a pending refresh still lands
// while the store is closing.
func (s *Store) refreshMirror() {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorRefreshTimeout)
	defer cancel()
	if err := s.writeMirror(ctx); err != nil {
		logging.WarnWithContext(s.logger, "legacy mirror refresh failed", "mirror_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check legacy_path permissions"),
			logging.String(logging.FieldImpact, "legacy backup copy is stale; the database is unaffected"))
	}
}

func (s *Store) writeMirror(ctx context.Context) error {
	if !s.mirrorUngated {
		marker, err := s.mirror.MigrationMarker()
		if err != nil {
			return fmt.Errorf("read migration marker: %w", err)
		}
		if marker != legacy.MarkerCompleted {
			s.logger.Debug("legacy mirror refresh deferred until migration completes")
			return nil
		}
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	return s.mirror.WriteSnapshot(snap)
}

// snapshot reads the full store without touching the cache.
func (s *Store) snapshot(ctx context.Context) (legacy.Snapshot, error) {
	rows, err := s.scanItems(ctx)
	if err != nil {
		return legacy.Snapshot{}, err
	}
	items := make(map[string]int64, len(rows))
	for _, row := range rows {
		items[row.id] = row.timestamp
	}
	settings, _, err := s.readSetting(ctx, SettingAlertSettings)
	if err != nil {
		return legacy.Snapshot{}, err
	}
	return legacy.Snapshot{
		Items:           items,
		AlertSettings:   settings,
		PremiumUnlocked: s.PremiumUnlocked(ctx),
	}, nil
}
