package core

// service.go hosts view sessions.
//
// Each session owns one Table and its NoticeLog. Sessions are keyed by a
// random UUID and expire after IdleTimeout without use; the janitor started
// by StartJanitor removes them.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long an unused view session is kept.
const DefaultIdleTimeout = 30 * time.Minute

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Policy         BatchPolicy
	MaxConcurrent  int
	IdleTimeout    time.Duration
	MaxViews       int // 0 = unlimited
	NoticeCapacity int
}

// ViewInfo describes a registered view for listing.
type ViewInfo struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Scoped      bool     `json:"scoped"`
	Paginated   bool     `json:"paginated"`
	PageSize    int      `json:"pageSize"`
	FilterField string   `json:"filterField,omitempty"`
	Columns     []Column `json:"columns"`
}

// ViewSession is one open view.
type ViewSession struct {
	ID      string
	Table   *Table
	Notices *NoticeLog

	mu       sync.Mutex
	lastUsed time.Time
}

func (v *ViewSession) touch(now time.Time) {
	v.mu.Lock()
	v.lastUsed = now
	v.mu.Unlock()
}

func (v *ViewSession) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastUsed
}

// Service provides view sessions over registered view definitions.
type Service struct {
	backends BackendFactory
	cfg      ServiceConfig
	now      func() time.Time

	mu      sync.RWMutex
	views   map[string]*ViewSession
	opening int // sessions reserved but not yet registered
}

// NewService creates a new Service instance.
func NewService(backends BackendFactory, cfg ServiceConfig) *Service {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyBestEffort
	}
	return &Service{
		backends: backends,
		cfg:      cfg,
		now:      time.Now,
		views:    make(map[string]*ViewSession),
	}
}

// ListViews returns information about all registered views.
func (s *Service) ListViews() []ViewInfo {
	defs := All()
	infos := make([]ViewInfo, len(defs))
	for i, def := range defs {
		infos[i] = ViewInfo{
			Key:         def.Key,
			Label:       def.Label,
			Scoped:      def.ScopeField != "",
			Paginated:   def.Paginated,
			PageSize:    def.EffectivePageSize(),
			FilterField: def.FilterField,
			Columns:     def.Columns,
		}
	}
	return infos
}

// OpenView creates a session for the view key within scope and performs the
// initial load. The session is only registered if the load succeeds.
func (s *Service) OpenView(ctx context.Context, key string, scope Scope) (*ViewSession, error) {
	def, ok := Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, key)
	}
	if def.ScopeField != "" && scope.ParentID == "" {
		return nil, fmt.Errorf("%w: view %s requires a parent id", ErrInvalidState, key)
	}

	if err := s.reserve(); err != nil {
		return nil, err
	}
	defer s.release()

	backend, err := s.backends.Backend(def)
	if err != nil {
		return nil, fmt.Errorf("backend for %s: %w", key, err)
	}

	id := uuid.New().String()
	logger := slog.Default().With("view_id", id)
	notices := NewNoticeLog(s.cfg.NoticeCapacity, logger)

	table, err := NewTable(def, scope, backend, TableOptions{
		Policy:        s.cfg.Policy,
		MaxConcurrent: s.cfg.MaxConcurrent,
		Notifier:      notices,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	if err := table.Open(ctx); err != nil {
		return nil, err
	}

	session := &ViewSession{ID: id, Table: table, Notices: notices, lastUsed: s.now()}

	s.mu.Lock()
	s.views[id] = session
	s.mu.Unlock()

	logger.Info("view session opened", "view", key, "scope", scope.ParentID)
	return session, nil
}

// reserve claims a session slot for an open in progress.
func (s *Service) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxViews > 0 && len(s.views)+s.opening >= s.cfg.MaxViews {
		return ErrTooManyViews
	}
	s.opening++
	return nil
}

func (s *Service) release() {
	s.mu.Lock()
	s.opening--
	s.mu.Unlock()
}

// View returns an open session and marks it used.
func (s *Service) View(id string) (*ViewSession, error) {
	s.mu.RLock()
	session, ok := s.views[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	session.touch(s.now())
	return session, nil
}

// CloseView ends a session.
func (s *Service) CloseView(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[id]; !ok {
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	delete(s.views, id)
	return nil
}

// ActiveViews returns the number of open sessions.
func (s *Service) ActiveViews() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}

// ExpireIdle removes sessions unused for longer than the idle timeout and
// returns how many were removed.
func (s *Service) ExpireIdle() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, session := range s.views {
		if session.idleSince().Before(cutoff) {
			delete(s.views, id)
			expired++
		}
	}
	return expired
}

// StartJanitor periodically expires idle sessions until ctx is cancelled.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("view janitor started", "interval", interval, "idle_timeout", s.cfg.IdleTimeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("view janitor stopped")
			return
		case <-ticker.C:
			if n := s.ExpireIdle(); n > 0 {
				slog.Info("expired idle views", "count", n, "remaining", s.ActiveViews())
			}
		}
	}
}
