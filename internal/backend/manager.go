// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/office2img/pkg/types"
)

// Manager owns the backend sessions of one batch: at most one session per
// AppType, started on first use and reused for every later document.
// A Manager is single-use; after ShutdownAll it refuses new sessions.
type Manager struct {
	driver Driver
	limit  time.Duration
	log    *logrus.Logger

	initialized bool
	sessions    map[AppType]Session
	order       []AppType
	shutdown    bool
}

// NewManager returns a Manager starting sessions through d. Every backend
// call is bounded by limit (zero for no bound).
func NewManager(d Driver, limit time.Duration, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Manager{
		driver:   d,
		limit:    limit,
		log:      log,
		sessions: make(map[AppType]Session),
	}
}

// Driver returns the driver's name.
func (m *Manager) Driver() string {
	return m.driver.Name()
}

func (m *Manager) init() error {
	if m.shutdown {
		return fmt.Errorf("session manager already shut down")
	}
	if m.initialized {
		return nil
	}
	if err := m.driver.Init(); err != nil {
		return fmt.Errorf("initializing %s driver: %w", m.driver.Name(), err)
	}
	m.initialized = true
	m.log.WithField("driver", m.driver.Name()).Debug("backend driver initialized")
	return nil
}

func (m *Manager) start(ctx context.Context, app AppType) (Session, error) {
	if err := m.init(); err != nil {
		return nil, err
	}
	begin := time.Now()
	s, err := boundedRelease(ctx, m.limit, "start "+string(app)+" application", func(ctx context.Context) (Session, error) {
		return m.driver.Start(ctx, app)
	}, func(late Session) {
		m.log.WithField("app", app).Debug("quitting session that started after its deadline")
		m.quit(context.Background(), app, late)
	})
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"driver":  m.driver.Name(),
		"app":     app,
		"elapsed": time.Since(begin),
	}).Debug("backend session started")
	return s, nil
}

// Ensure returns the session for app, starting it on first use.
func (m *Manager) Ensure(ctx context.Context, app AppType) (Session, error) {
	if s, ok := m.sessions[app]; ok {
		return s, nil
	}
	raw, err := m.start(ctx, app)
	if err != nil {
		return nil, err
	}

	var s Session
	switch v := raw.(type) {
	case Documents:
		if app != DocumentApp {
			return nil, m.mismatch(ctx, raw, app)
		}
		s = &timedDocuments{inner: v, limit: m.limit}
	case Presentations:
		if app != PresentationApp {
			return nil, m.mismatch(ctx, raw, app)
		}
		s = &timedPresentations{inner: v, limit: m.limit}
	default:
		return nil, m.mismatch(ctx, raw, app)
	}

	m.sessions[app] = s
	m.order = append(m.order, app)
	return s, nil
}

func (m *Manager) mismatch(ctx context.Context, s Session, app AppType) error {
	m.quit(ctx, app, s)
	return fmt.Errorf("%s driver returned a session of type %T for %s", m.driver.Name(), s, app)
}

// Documents returns the document-authoring session.
func (m *Manager) Documents(ctx context.Context) (Documents, error) {
	s, err := m.Ensure(ctx, DocumentApp)
	if err != nil {
		return nil, err
	}
	return s.(Documents), nil
}

// Presentations returns the presentation-authoring session.
func (m *Manager) Presentations(ctx context.Context) (Presentations, error) {
	s, err := m.Ensure(ctx, PresentationApp)
	if err != nil {
		return nil, err
	}
	return s.(Presentations), nil
}

// Probe checks that app can be started by starting and immediately
// stopping an instance. Failure is reported as ErrBackendUnavailable.
func (m *Manager) Probe(ctx context.Context, app AppType) error {
	s, err := m.start(ctx, app)
	if err != nil {
		return fmt.Errorf("%w: %s application via %s: %v", types.ErrBackendUnavailable, app, m.driver.Name(), err)
	}
	if err := boundedErr(ctx, m.limit, "quit "+string(app)+" application", s.Quit); err != nil {
		m.log.WithError(err).WithField("app", app).Debug("probe session did not quit cleanly")
	}
	return nil
}

// ShutdownAll quits every session and releases driver state. It runs its
// teardown once; later calls do nothing. Failures are logged at debug level
// and never returned.
func (m *Manager) ShutdownAll(ctx context.Context) {
	if m.shutdown {
		return
	}
	m.shutdown = true

	for _, app := range m.order {
		m.quit(ctx, app, m.sessions[app])
		delete(m.sessions, app)
	}
	m.order = nil

	if m.initialized {
		m.driver.Uninit()
		m.initialized = false
		m.log.WithField("driver", m.driver.Name()).Debug("backend driver released")
	}
}

func (m *Manager) quit(ctx context.Context, app AppType, s Session) {
	if err := s.Quit(ctx); err != nil {
		m.log.WithError(fmt.Errorf("%w: quitting %s application: %v", types.ErrCleanup, app, err)).Debug("ignoring backend shutdown failure")
	}
}
