package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/drinkshelf/internal/client/client"
	"github.com/dmitrijs2005/drinkshelf/internal/client/config"
	"github.com/dmitrijs2005/drinkshelf/internal/client/credentials"
	"github.com/dmitrijs2005/drinkshelf/internal/client/metrics"
	"github.com/dmitrijs2005/drinkshelf/internal/client/models"
	"github.com/dmitrijs2005/drinkshelf/internal/client/services"
	"github.com/dmitrijs2005/drinkshelf/internal/client/session"
	"github.com/dmitrijs2005/drinkshelf/internal/filex"
	"github.com/dmitrijs2005/drinkshelf/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const (
	pingTimeout          = 3 * time.Second
	defaultCheckInterval = 3 * time.Second
)

// sessionStore is the part of session.Store the CLI drives.
type sessionStore interface {
	State() session.State
	Subscribe() (<-chan session.State, func())
	InitializeAuth(ctx context.Context) session.State
	Login(ctx context.Context, identifier, password string) (*models.User, error)
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Logout(ctx context.Context)
}

type profileService interface {
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type credentialInfo interface {
	SavedAt(ctx context.Context) (time.Time, error)
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    sessionStore
	profiles profileService
	api      pinger
	creds    credentialInfo
	registry *prometheus.Registry
	closers  []io.Closer
	reader   *bufio.Reader
	out      io.Writer

	mu   sync.Mutex
	mode Mode
}

// NewApp opens the profile database and wires the API client, the
// credential store and the session store.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	path, err := filex.ProfileDBPath(c.DataDir, c.Profile)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	creds := credentials.NewStore(db)

	apiClient, err := client.NewHTTPClient(c.ServerURL,
		client.WithTimeout(c.RequestTimeout),
		client.WithTokenSource(creds.Token),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var recorder metrics.Recorder = metrics.Nop{}
	var registry *prometheus.Registry
	if c.MetricsAddr != "" {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		p, err := metrics.NewPrometheus(registry)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		recorder = p
	}

	store := session.NewStore(apiClient, creds,
		session.WithLogger(logger.With("component", "session")),
		session.WithMetrics(recorder),
	)

	logger.Debug(ctx, "profile opened", "profile", c.Profile, "db", path)

	return &App{
		config:   c,
		logger:   logger,
		store:    store,
		profiles: services.NewProfileService(apiClient, store),
		api:      apiClient,
		creds:    creds,
		registry: registry,
		closers:  []io.Closer{apiClient, dbCloser{db}},
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}, nil
}

type dbCloser struct{ db *sql.DB }

func (d dbCloser) Close() error { return d.db.Close() }

// Run blocks until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.registry != nil {
		go a.serveMetrics(ctx)
	}

	a.Root(ctx)
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn(context.Background(), "close", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.store.State().IsAuthenticated()
}

func (a *App) getMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.logger.Info(context.Background(), fmt.Sprintf("Switched to %s mode", mode))
	}
}

// StartOnlineStatusWatcher pings the server right away and then every
// interval, switching the mode accordingly, until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := a.api.Ping(pctx)
		cancel()

		if err != nil {
			if !errors.Is(err, context.Canceled) {
				a.setMode(ModeOffline)
			}
			return
		}
		a.setMode(ModeOnline)
	}

	check()

	if interval <= 0 {
		interval = defaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			return
		}
	}
}

// watchSession logs session transitions as seen by subscribers.
func (a *App) watchSession(ctx context.Context) {
	ch, unsubscribe := a.store.Subscribe()
	defer unsubscribe()

	var prev session.State
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return
			}
			switch {
			case st.User != nil && (prev.User == nil || prev.User.ID != st.User.ID):
				a.logger.Info(ctx, "session started", "user_id", st.User.ID, "username", st.User.Username)
			case st.User == nil && prev.User != nil:
				a.logger.Info(ctx, "session ended", "user_id", prev.User.ID)
			}
			if st.Error != "" && st.Error != prev.Error {
				a.logger.Debug(ctx, "session error", "error", st.Error)
			}
			prev = st
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) serveMetrics(ctx context.Context) {
	srv := &http.Server{
		Addr:              a.config.MetricsAddr,
		Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info(ctx, "metrics endpoint listening", "addr", a.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error(ctx, "metrics endpoint", "error", err)
	}
}
