package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vancomm/classic-minesweeper/internal/config"
	"github.com/vancomm/classic-minesweeper/internal/database"
	"github.com/vancomm/classic-minesweeper/internal/handlers"
	"github.com/vancomm/classic-minesweeper/internal/middleware"
	"github.com/vancomm/classic-minesweeper/internal/mines"
	"github.com/vancomm/classic-minesweeper/internal/repository"
)

const shutdownTimeout = time.Second * 30

type App struct {
	logger   *slog.Logger
	addr     string
	db       *pgxpool.Pool
	store    handlers.SessionStore
	cookies  *config.Cookies
	ws       *config.WebSocket
	defaults mines.GameParams
}

func New(logger *slog.Logger) *App {
	return &App{
		logger: logger,
		addr:   config.Port(),
	}
}

// connectStore uses Postgres when it is configured. Development runs without
// a database keep sessions in memory instead.
func (a *App) connectStore(ctx context.Context) error {
	if _, err := config.DbURL(); err != nil && config.Development() {
		a.logger.Warn("database is not configured, keeping sessions in memory", slog.Any("reason", err))
		a.store = repository.NewMemory()
		return nil
	}

	db, version, err := database.ConnectAndMigrate(ctx)
	if err != nil {
		return fmt.Errorf("unable to connect to db: %w", err)
	}
	a.logger.Debug("database migrated", slog.Uint64("version", uint64(version)))
	a.db = db
	a.store = repository.New(db)
	return nil
}

func (a *App) configure() error {
	if err := config.SetupCoreLog(mines.Log); err != nil {
		return fmt.Errorf("unable to set up game log: %w", err)
	}

	jwt, err := config.NewJWT()
	if err != nil {
		return err
	}
	if a.cookies, err = config.NewCookies(jwt); err != nil {
		return err
	}
	a.ws = config.NewWebSocket()
	if a.defaults, err = config.GameDefaults(); err != nil {
		return err
	}
	return nil
}

func (a *App) Handler() http.Handler {
	return middleware.Wrap(
		a.loadRoutes(),
		middleware.RequestId(),
		middleware.Logging(a.logger),
		middleware.Cors(config.CorsOrigins()...),
		middleware.Auth(a.cookies),
	)
}

// Start serves until ctx is done, then shuts the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.configure(); err != nil {
		return err
	}
	if err := a.connectStore(ctx); err != nil {
		return err
	}
	if a.db != nil {
		defer a.db.Close()
	}

	server := &http.Server{
		Addr:    a.addr,
		Handler: a.Handler(),
	}

	done := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	a.logger.Info(
		"server listening",
		slog.String("addr", a.addr),
		slog.String("defaults", a.defaults.Seed()),
	)
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("unable to listen and serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
