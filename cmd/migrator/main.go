package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/vancomm/classic-minesweeper/internal/config"
	"github.com/vancomm/classic-minesweeper/internal/database"
)

func run(logger *slog.Logger) (err error) {
	url, err := config.DbURL()
	if err != nil {
		return fmt.Errorf("database is not configured: %w", err)
	}

	migrator, err := database.Migrate(url)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		err = errors.Join(err, srcErr, dbErr)
	}()

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}
	logger.Info("migration successful", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return nil
}

func main() {
	var logger *slog.Logger
	if config.Development() {
		logger = slog.New(tint.NewHandler(os.Stderr, nil))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	if err := run(logger); err != nil {
		logger.Error("failed to migrate", slog.Any("error", err))
		os.Exit(1)
	}
}
