package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/presentd/internal/config"
	"github.com/jmylchreest/presentd/internal/dbus"
	"github.com/jmylchreest/presentd/internal/journal"
	"github.com/jmylchreest/presentd/internal/metrics"
	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/orchestrator"
	"github.com/jmylchreest/presentd/internal/timeout"
	"github.com/jmylchreest/presentd/internal/tracker"
)

// shutdownTimeout bounds the final clear of every window.
const shutdownTimeout = 5 * time.Second

// Options configures a Service.
type Options struct {
	Config *config.DaemonConfig
	// ConfigPath is watched for changes when non-empty.
	ConfigPath string
	Version    string
	Logger     *slog.Logger
}

// Service hosts one orchestrator client with in-process collaborators and
// implements the bus backend.
type Service struct {
	cfg        *config.DaemonConfig
	configPath string
	version    string
	startedAt  time.Time
	logger     *slog.Logger

	tracker  *tracker.Tracker
	timeouts *timeout.Manager
	client   *orchestrator.Client
	registry *Registry
	notifier *InternalNotifier
	journal  *journal.Journal
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	emitter SignalEmitter
}

// New builds the service from its configuration. Nothing is exported on
// the bus until Run.
func New(opts Options) (*Service, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		version:    opts.Version,
		startedAt:  time.Now(),
		logger:     logger,
		tracker:    tracker.New(logger.With("component", "tracker")),
		timeouts:   timeout.NewManager(logger.With("component", "timeouts")),
		registry:   NewRegistry(),
		notifier:   NewInternalNotifier(logger),
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.JournalPath(), journal.Options{
			MaxEntries: cfg.Journal.MaxEntries,
			Logger:     logger.With("component", "journal"),
		})
		if err != nil {
			s.timeouts.Stop()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		s.journal = j
	}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}

	recorders := []orchestrator.Recorder{s.notifier}
	if s.journal != nil {
		recorders = append(recorders, s.journal)
	}
	if s.metrics != nil {
		recorders = append(recorders, s.metrics)
	}

	client, err := orchestrator.NewClient(orchestrator.ClientConfig{
		ID:       cfg.ClientID,
		Tracker:  s.tracker,
		Timeouts: s.timeouts,
		Mapper:   timeout.NewMapper(cfg.MapperConfig()),
		Recorder: newMultiRecorder(recorders...),
		Logger:   logger,
	})
	if err != nil {
		s.closeStores()
		return nil, err
	}
	s.client = client

	s.tracker.AddStateObserver(tracker.StateObserverFunc(func(windowID, metadata string) {
		s.logger.Debug("focused window changed", "window", windowID, "metadata", metadata)
	}))

	if err := s.tracker.SetWindows(cfg.Windows); err != nil {
		_ = s.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to register windows: %w", err)
	}

	return s, nil
}

// Tracker returns the state tracker.
func (s *Service) Tracker() *tracker.Tracker { return s.tracker }

// Client returns the orchestrator client.
func (s *Service) Client() *orchestrator.Client { return s.client }

// Registry returns the registry of bus-created presentations.
func (s *Service) Registry() *Registry { return s.registry }

// SetEmitter sets where presentation signals are published.
func (s *Service) SetEmitter(emitter SignalEmitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitter = emitter
}

func (s *Service) currentEmitter() SignalEmitter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emitter
}

// Run exports the service and blocks until ctx is done, then shuts down.
func (s *Service) Run(ctx context.Context) error {
	var server *dbus.Server
	if s.cfg.DBus.Enabled {
		server = dbus.NewServer(s, s.logger.With("component", "dbus"))
		if err := server.Start(); err != nil {
			_ = s.Shutdown(context.Background())
			return err
		}
		s.SetEmitter(server)
	}

	var wg sync.WaitGroup
	if s.metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.metrics.Serve(ctx, s.cfg.Metrics.Address, s.cfg.Metrics.Path, s.logger); err != nil {
				s.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	var watcher *ConfigWatcher
	if s.configPath != "" {
		watcher = NewConfigWatcher(s.configPath, s.logger)
		watcher.SetReloadCallback(func(cfg *config.DaemonConfig) {
			if err := s.ApplyConfig(cfg); err != nil {
				s.notifier.NotifyConfigError(err)
			}
		})
		watcher.SetErrorCallback(s.notifier.NotifyConfigError)
		if err := watcher.Start(ctx, s.cfg); err != nil {
			s.logger.Warn("config hot reload unavailable", "error", err)
			watcher = nil
		}
	}

	s.notifier.NotifyStartup(s.version)
	<-ctx.Done()

	if watcher != nil {
		watcher.Stop()
	}
	if server != nil {
		s.SetEmitter(nil)
		_ = server.Stop()
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// ApplyConfig applies a reloaded configuration. Only the window set takes
// effect immediately.
func (s *Service) ApplyConfig(cfg *config.DaemonConfig) error {
	if err := s.tracker.SetWindows(cfg.Windows); err != nil {
		return err
	}

	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	if cfg.ClientID != old.ClientID {
		s.notifier.NotifyRestartRequired("client_id")
	}
	if cfg.Timeouts != old.Timeouts {
		s.notifier.NotifyRestartRequired("timeouts")
	}
	if cfg.Journal != old.Journal {
		s.notifier.NotifyRestartRequired("journal")
	}
	if cfg.Metrics != old.Metrics {
		s.notifier.NotifyRestartRequired("metrics")
	}
	if cfg.DBus != old.DBus {
		s.notifier.NotifyRestartRequired("dbus")
	}

	s.notifier.NotifyConfigReloaded(len(cfg.Windows))
	return nil
}

// Shutdown clears every window and releases the collaborators.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if s.client != nil {
		if err := s.client.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closeStores()
	return errors.Join(errs...)
}

func (s *Service) closeStores() {
	s.timeouts.Stop()
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("failed to close journal", "error", err)
		}
	}
}

// RequestWindow requests a presentation on behalf of a bus caller.
func (s *Service) RequestWindow(windowID string, opts model.PresentationOptions) model.Token {
	observer := &busObserver{
		windowID: windowID,
		registry: s.registry,
		emitter:  s.currentEmitter,
		logger:   s.logger,
	}
	return s.client.RequestWindow(windowID, opts, observer)
}

// Dismiss dismisses the presentation behind token.
func (s *Service) Dismiss(token model.Token) error {
	p, err := s.registry.Get(token)
	if err != nil {
		return err
	}
	p.Dismiss()
	return nil
}

// Foreground brings the presentation behind token to the front.
func (s *Service) Foreground(token model.Token) error {
	p, err := s.registry.Get(token)
	if err != nil {
		return err
	}
	p.Foreground()
	return nil
}

// SetMetadata replaces the metadata of token.
func (s *Service) SetMetadata(token model.Token, metadata string) error {
	p, err := s.registry.Get(token)
	if err != nil {
		return err
	}
	p.SetMetadata(metadata)
	return nil
}

// SetLifespan changes the lifespan of token.
func (s *Service) SetLifespan(token model.Token, lifespan model.Lifespan) error {
	if _, ok := model.LifespanNames[lifespan]; !ok {
		return fmt.Errorf("%w: %d", model.ErrInvalidLifespan, lifespan)
	}
	p, err := s.registry.Get(token)
	if err != nil {
		return err
	}
	p.SetLifespan(lifespan)
	return nil
}

// SetTimeout changes the timeout of token.
func (s *Service) SetTimeout(token model.Token, t model.Timeout) error {
	p, err := s.registry.Get(token)
	if err != nil {
		return err
	}
	p.SetTimeout(t)
	return nil
}

// NavigateBack sends a back event to the focused window.
func (s *Service) NavigateBack(ctx context.Context) (bool, error) {
	return s.client.NavigateBack(ctx)
}

// ClearPresentations clears every window.
func (s *Service) ClearPresentations(ctx context.Context) error {
	return s.client.ClearPresentations(ctx)
}

// ClearJournal empties the state journal.
func (s *Service) ClearJournal() (int, error) {
	if s.journal == nil {
		return 0, dbus.ErrJournalDisabled
	}
	return s.journal.Clear()
}

// Status returns the current daemon status.
func (s *Service) Status(ctx context.Context) (*dbus.Status, error) {
	snap, err := s.client.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	status := &dbus.Status{
		Version:          s.version,
		StartedAt:        s.startedAt,
		Client:           snap,
		Windows:          s.tracker.States(),
		BusPresentations: s.registry.Entries(),
		BusVisible:       s.registry.VisibleCount(),
	}
	if s.journal != nil {
		status.JournalEntries = s.journal.Len()
		status.DroppedRequests = s.journal.Dropped()
	}
	return status, nil
}
