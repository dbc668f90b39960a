package dbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/presentd/internal/model"
)

const (
	// DBusInterface is the orchestrator interface name.
	DBusInterface = "io.github.jmylchreest.presentd.Orchestrator1"
	// DBusPath is the orchestrator object path.
	DBusPath = "/io/github/jmylchreest/presentd"
	// DBusBusName is the bus name to claim.
	DBusBusName = "io.github.jmylchreest.presentd"
)

// callTimeout bounds bus methods that wait on the orchestrator.
const callTimeout = 5 * time.Second

// Server exports a Backend on the session bus.
type Server struct {
	conn    *dbus.Conn
	backend Backend
	logger  *slog.Logger

	mu      sync.RWMutex
	running bool
}

// NewServer creates a server for backend.
func NewServer(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		backend: backend,
		logger:  logger,
	}
}

// Start connects to the session bus and exports the orchestrator service.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: DBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    DBusInterface,
				Methods: orchestratorMethods(),
				Signals: orchestratorSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), DBusPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagDoNotQueue|dbus.NameFlagReplaceExisting)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", DBusBusName)
	}

	s.mu.Lock()
	s.conn = conn
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus orchestrator service started", "interface", DBusInterface, "path", DBusPath)
	return nil
}

// Stop releases the bus name and unexports the object.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		_ = s.conn.Export(nil, DBusPath, DBusInterface)
		if _, err := s.conn.ReleaseName(DBusBusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
	}

	s.logger.Info("D-Bus orchestrator service stopped")
	return nil
}

// IsRunning reports whether the service is exported.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// RequestWindow implements the RequestWindow method. An empty lifespan is
// treated as short; timeoutMs follows TimeoutFromMillis.
func (s *Server) RequestWindow(windowID, interfaceName, lifespan string, timeoutMs int64, metadata string) (uint64, *dbus.Error) {
	if windowID == "" {
		return 0, toDBusError(model.ErrEmptyWindowID)
	}

	l := model.LifespanShort
	if strings.TrimSpace(lifespan) != "" {
		parsed, err := model.ParseLifespan(lifespan)
		if err != nil {
			return 0, toDBusError(err)
		}
		l = parsed
	}

	token := s.backend.RequestWindow(windowID, model.PresentationOptions{
		InterfaceName: interfaceName,
		Lifespan:      l,
		Timeout:       model.TimeoutFromMillis(timeoutMs),
		Metadata:      metadata,
	})

	s.logger.Debug("RequestWindow", "window", windowID, "interface", interfaceName, "lifespan", l, "token", token)
	return uint64(token), nil
}

// Dismiss implements the Dismiss method.
func (s *Server) Dismiss(token uint64) *dbus.Error {
	return toDBusError(s.backend.Dismiss(model.Token(token)))
}

// Foreground implements the Foreground method.
func (s *Server) Foreground(token uint64) *dbus.Error {
	return toDBusError(s.backend.Foreground(model.Token(token)))
}

// SetMetadata implements the SetMetadata method.
func (s *Server) SetMetadata(token uint64, metadata string) *dbus.Error {
	return toDBusError(s.backend.SetMetadata(model.Token(token), metadata))
}

// SetLifespan implements the SetLifespan method.
func (s *Server) SetLifespan(token uint64, lifespan string) *dbus.Error {
	l, err := model.ParseLifespan(lifespan)
	if err != nil {
		return toDBusError(err)
	}
	return toDBusError(s.backend.SetLifespan(model.Token(token), l))
}

// SetTimeout implements the SetTimeout method.
func (s *Server) SetTimeout(token uint64, timeoutMs int64) *dbus.Error {
	return toDBusError(s.backend.SetTimeout(model.Token(token), model.TimeoutFromMillis(timeoutMs)))
}

// NavigateBack implements the NavigateBack method. It returns true when a
// presentation was dismissed and false when nothing was popped, including
// when the content consumed the back event itself.
func (s *Server) NavigateBack() (bool, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	dismissed, err := s.backend.NavigateBack(ctx)
	if err != nil {
		return false, toDBusError(err)
	}
	return dismissed, nil
}

// ClearPresentations implements the ClearPresentations method.
func (s *Server) ClearPresentations() *dbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	return toDBusError(s.backend.ClearPresentations(ctx))
}

// ClearJournal implements the ClearJournal method.
func (s *Server) ClearJournal() (uint32, *dbus.Error) {
	removed, err := s.backend.ClearJournal()
	if err != nil {
		return 0, toDBusError(err)
	}
	s.logger.Info("journal cleared over the bus", "removed", removed)
	return uint32(removed), nil
}

// GetStatus implements the GetStatus method. The status is JSON encoded.
func (s *Server) GetStatus() (string, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	status, err := s.backend.Status(ctx)
	if err != nil {
		return "", toDBusError(err)
	}

	data, err := json.Marshal(status)
	if err != nil {
		return "", toDBusError(err)
	}
	return string(data), nil
}

func orchestratorMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "RequestWindow",
			Args: []introspect.Arg{
				{Name: "window_id", Type: "s", Direction: "in"},
				{Name: "interface", Type: "s", Direction: "in"},
				{Name: "lifespan", Type: "s", Direction: "in"},
				{Name: "timeout_ms", Type: "x", Direction: "in"},
				{Name: "metadata", Type: "s", Direction: "in"},
				{Name: "token", Type: "t", Direction: "out"},
			},
		},
		{
			Name: "Dismiss",
			Args: []introspect.Arg{
				{Name: "token", Type: "t", Direction: "in"},
			},
		},
		{
			Name: "Foreground",
			Args: []introspect.Arg{
				{Name: "token", Type: "t", Direction: "in"},
			},
		},
		{
			Name: "SetMetadata",
			Args: []introspect.Arg{
				{Name: "token", Type: "t", Direction: "in"},
				{Name: "metadata", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "SetLifespan",
			Args: []introspect.Arg{
				{Name: "token", Type: "t", Direction: "in"},
				{Name: "lifespan", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "SetTimeout",
			Args: []introspect.Arg{
				{Name: "token", Type: "t", Direction: "in"},
				{Name: "timeout_ms", Type: "x", Direction: "in"},
			},
		},
		{
			Name: "NavigateBack",
			Args: []introspect.Arg{
				{Name: "dismissed", Type: "b", Direction: "out"},
			},
		},
		{
			Name: "ClearPresentations",
		},
		{
			Name: "ClearJournal",
			Args: []introspect.Arg{
				{Name: "removed", Type: "u", Direction: "out"},
			},
		},
		{
			Name: "GetStatus",
			Args: []introspect.Arg{
				{Name: "status", Type: "s", Direction: "out"},
			},
		},
	}
}

func orchestratorSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "PresentationAvailable",
			Args: []introspect.Arg{
				{Name: "token", Type: "t"},
				{Name: "window_id", Type: "s"},
			},
		},
		{
			Name: "PresentationStateChanged",
			Args: []introspect.Arg{
				{Name: "token", Type: "t"},
				{Name: "window_id", Type: "s"},
				{Name: "state", Type: "s"},
			},
		},
	}
}
