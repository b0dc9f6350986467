// Package serv runs the filter engine as an HTTP service.
package serv

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dosco/docfind/conf"
	"github.com/dosco/docfind/core"
	"github.com/dosco/docfind/serv/internal/util"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Service is a docfind instance: a store, the engine over it and the saved
// filters, exposed over HTTP.
type Service struct {
	conf       *Config
	log        *zap.SugaredLogger
	zlog       *zap.Logger
	logLevel   zap.AtomicLevel
	fs         afero.Fs
	osPath     string
	store      core.Store
	closeStore func(context.Context) error
	df         *core.DocFind
	filters    *conf.List
	watcher    *fsnotify.Watcher
	metrics    *httpMetrics
	limiter    *rateLimiter
}

type Option func(*Service) error

// OptionSetStore sets the store, no database connection is made
func OptionSetStore(store core.Store) Option {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// OptionSetLogger sets the logger used by the service and the engine
func OptionSetLogger(log *zap.Logger) Option {
	return func(s *Service) error {
		s.zlog = log
		s.log = log.Sugar()
		return nil
	}
}

// OptionSetFS sets the filesystem config files and saved filters are read
// from. Saved filters are not watched on a custom filesystem.
func OptionSetFS(fs afero.Fs) Option {
	return func(s *Service) error {
		s.fs = fs
		return nil
	}
}

// NewService creates a new service from a config
func NewService(c *Config, options ...Option) (*Service, error) {
	if c == nil {
		c = &Config{}
	}
	s := &Service{conf: c}

	for _, op := range options {
		if err := op(s); err != nil {
			return nil, err
		}
	}

	s.initLogLevel()

	if s.zlog == nil {
		s.zlog = util.NewLogger(c.LogFormat == "json", s.logLevel)
		s.log = s.zlog.Sugar()
	}

	if err := s.initConfig(); err != nil {
		return nil, err
	}

	if err := s.initFS(); err != nil {
		return nil, err
	}

	if err := s.initStore(); err != nil {
		return nil, err
	}

	if err := s.initEngine(); err != nil {
		s.close(context.Background())
		return nil, err
	}

	if err := s.initFilters(); err != nil {
		s.close(context.Background())
		return nil, err
	}

	if err := s.initWatcher(); err != nil {
		s.log.Warnf("saved filters will not be reloaded: %s", err)
	}

	s.metrics = newHTTPMetrics()

	limiter, err := newRateLimiter(c.RateLimiter)
	if err != nil {
		s.close(context.Background())
		return nil, err
	}
	s.limiter = limiter
	return s, nil
}

// Engine returns the filter engine
func (s *Service) Engine() *core.DocFind {
	return s.df
}

// Filters returns the saved filter list
func (s *Service) Filters() *conf.List {
	return s.filters
}

// Store returns the document store
func (s *Service) Store() core.Store {
	return s.store
}

// Find runs a filter
func (s *Service) Find(ctx context.Context, f *core.Filter) ([]core.Document, error) {
	return s.df.Find(ctx, f)
}

// FindByName runs a saved filter with the overrides laid over it
func (s *Service) FindByName(ctx context.Context, name string, o conf.Overrides) ([]core.Document, error) {
	f, err := s.filters.Get(name)
	if err != nil {
		return nil, err
	}
	return s.df.Find(ctx, conf.Apply(f, o))
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the store can be reached. Stores without a connection always
// succeed.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Start runs the HTTP server until an interrupt or terminate signal
func (s *Service) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves HTTP until ctx is done and then shuts the service down
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.conf.hostPort,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	s.log.Infof("%s listening on %s (%s)", s.conf.AppName, s.conf.hostPort, s.mode())

	select {
	case err := <-errc:
		s.close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := srv.Shutdown(sctx)
	if cerr := s.Close(sctx); err == nil {
		err = cerr
	}
	return err
}

// Close stops background work and disconnects the store
func (s *Service) Close(ctx context.Context) error {
	return s.close(ctx)
}

func (s *Service) close(ctx context.Context) (err error) {
	if s.watcher != nil {
		s.watcher.Close() //nolint:errcheck
		s.watcher = nil
	}
	if s.filters != nil {
		s.filters.Close()
	}
	if s.closeStore != nil {
		err = s.closeStore(ctx)
		s.closeStore = nil
	}
	return
}

func (s *Service) mode() string {
	if s.conf.Production {
		return "production"
	}
	return "development"
}
