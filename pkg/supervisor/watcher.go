package supervisor

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// watchInterval matches the original's fixed 10-second poll with no
// debouncing beyond it: rapid successive edits within one interval fire
// only once. It is a var, not a const, so tests can shorten it rather
// than waiting out a real 10 seconds per reload.
var watchInterval = 10 * time.Second

// runWatcher polls the rules file's modification time and triggers a rule
// store reload on any observed change. A stat failure is fatal to the
// watcher task.
func (s *Supervisor) runWatcher(ctx context.Context) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	var lastModified time.Time
	first := true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := os.Stat(s.rulesPath)
		if err != nil {
			return fmt.Errorf("stat rules file %s: %w", s.rulesPath, err)
		}

		if first {
			lastModified = info.ModTime()
			first = false
			continue
		}

		if info.ModTime().Equal(lastModified) {
			continue
		}
		lastModified = info.ModTime()

		s.logger.Info("rules file changed, reloading", zap.String("path", s.rulesPath))
		if err := s.store.Load(); err != nil {
			s.logger.Warn("rules file reload failed, rule store unchanged", zap.Error(err))
		}
		s.metrics.RuleStoreSize.Set(float64(s.store.Size()))
	}
}
