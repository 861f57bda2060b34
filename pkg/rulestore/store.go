// Package rulestore manages the process-wide, mutex-guarded mapping from
// source tag to compiled Processor that the transform worker consults on
// every message.
package rulestore

import (
	"fmt"
	"sync"

	"github.com/allenjsomb/changer/pkg/processor"
	"github.com/allenjsomb/changer/pkg/rule"
	"go.uber.org/zap"
)

// Store is a process-wide src -> *processor.Processor mapping behind a
// single mutex. The mutex is held across lookup, apply, and send by
// callers so that a reload can never be observed mid-transform.
type Store struct {
	mu        sync.Mutex
	procs     map[string]*processor.Processor
	loader    *rule.Loader
	rulesPath string
	logger    *zap.Logger
}

// New creates an empty Store that loads from rulesPath.
func New(rulesPath string, logger *zap.Logger) *Store {
	return &Store{
		procs:     make(map[string]*processor.Processor),
		loader:    rule.NewLoader(),
		rulesPath: rulesPath,
		logger:    logger,
	}
}

// Load runs the rule store's load procedure: parse the rules file, build
// fresh processors, install them, and prune any src no longer present. A
// parse failure leaves the current store untouched.
func (s *Store) Load() error {
	cfg, err := s.loader.Load(s.rulesPath)
	if err != nil {
		s.logger.Warn("rules file parse failed, keeping previous rule store", zap.Error(err))
		return fmt.Errorf("loading rules file: %w", err)
	}

	newProcs := make(map[string]*processor.Processor, len(cfg.PullRules))
	for _, pr := range cfg.PullRules {
		if pr.Src == "" {
			s.logger.Warn("skipping pull rule with empty src")
			continue
		}

		p := processor.New()
		addProc := false
		if pr.Regex != "" {
			addProc = p.SetRegex(pr.Regex)
			if !addProc {
				s.logger.Warn("skipping pull rule with invalid or unnamed regex",
					zap.String("src", pr.Src))
				continue
			}
		}
		if pr.Dst != "" {
			p.SetDestination(pr.Dst)
		}
		if !addProc {
			s.logger.Warn("skipping pull rule with no regex", zap.String("src", pr.Src))
			continue
		}
		newProcs[pr.Src] = p
	}

	s.mu.Lock()
	s.procs = newProcs
	s.mu.Unlock()

	s.logger.Info("rule store reloaded", zap.Int("rule_count", len(newProcs)))
	return nil
}

// Lookup returns the processor for src, holding the store lock for the
// duration of fn. Callers are expected to perform their Apply and send
// inside fn so that a reload cannot be observed mid-transform.
func (s *Store) Lookup(src string, fn func(p *processor.Processor, ok bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[src]
	fn(p, ok)
}

// Size reports the number of rules currently installed, for metrics.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}
