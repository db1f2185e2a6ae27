package session

import (
	"context"
	"fmt"
	"time"

	"docharvest/pkg/logger"
	"docharvest/pkg/metrics"
)

// Manager owns the active session and replaces it on request
type Manager struct {
	browser      Browser
	bootstrapURL string
	timeout      time.Duration
	current      Session
	logger       logger.Logger
	metrics      *metrics.Metrics
}

// NewManager creates a session manager. Sessions are bootstrapped against
// bootstrapURL with the given navigation timeout.
func NewManager(browser Browser, bootstrapURL string, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		browser:      browser,
		bootstrapURL: bootstrapURL,
		timeout:      timeout,
		logger:       log.WithField("component", "session"),
		metrics:      m,
	}
}

// Acquire creates and bootstraps a new session and makes it current.
// Creation and bootstrap share the navigation timeout. The previous session,
// if any, is left untouched.
func (m *Manager) Acquire(ctx context.Context) (Session, error) {
	bootCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		bootCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	s, err := m.browser.NewSession(bootCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.Bootstrap(bootCtx, m.bootstrapURL); err != nil {
		m.ReleaseBestEffort(s)
		return nil, fmt.Errorf("failed to bootstrap session: %w", err)
	}

	m.current = s
	m.logger.DebugWithFields("Session acquired", map[string]interface{}{
		"session": s.ID(),
		"url":     m.bootstrapURL,
	})
	return s, nil
}

// Current returns the active session, or nil before the first Acquire
func (m *Manager) Current() Session {
	return m.current
}

// Rotate releases the current session and acquires a fresh one.
// On failure there is no current session until the next successful Rotate.
func (m *Manager) Rotate(ctx context.Context, reason Reason) (Session, error) {
	old := m.current
	oldID := ""
	if old != nil {
		oldID = old.ID()
		m.ReleaseBestEffort(old)
		m.current = nil
	}

	s, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	m.metrics.IncRotation(string(reason))
	logger.LogRotation(m.logger, string(reason), oldID, s.ID())
	return s, nil
}

// ReleaseBestEffort closes a session. Errors are logged and never returned.
func (m *Manager) ReleaseBestEffort(s Session) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		m.logger.WithError(err).DebugWithFields("Session close failed", map[string]interface{}{
			"session": s.ID(),
		})
	}
}

// Close releases the current session and the browser
func (m *Manager) Close() {
	m.ReleaseBestEffort(m.current)
	m.current = nil
	if err := m.browser.Close(); err != nil {
		m.logger.WithError(err).Debug("Browser close failed")
	}
}
