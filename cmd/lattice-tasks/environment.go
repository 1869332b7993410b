// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/lattice-ml/lattice/lib/config"
	"github.com/lattice-ml/lattice/lib/taskapi"
	"github.com/lattice-ml/lattice/lib/tasksync"
	"github.com/lattice-ml/lattice/lib/tui"
	"github.com/lattice-ml/lattice/lib/version"
)

// environment is everything a command needs, built from the config
// file.
type environment struct {
	config  *config.Config
	logger  *slog.Logger
	api     *taskapi.Client
	client  *tasksync.Client
	printer *printer
	stderr  io.Writer
}

func newEnvironment(options globalOptions, stdout, stderr io.Writer) (*environment, error) {
	var cfg *config.Config
	var err error
	if options.configPath != "" {
		cfg, err = config.LoadFile(options.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, usageError("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageError("invalid config:\n%w", err)
	}

	logger := newLogger(stderr, cfg.Logging.Format, cfg.LogLevel()).With("command", binaryName)

	api, err := taskapi.NewClient(taskapi.ClientConfig{
		BaseURL:        cfg.API.BaseURL,
		Token:          cfg.API.Token,
		RequestTimeout: cfg.APITimeout(),
		UserAgent:      version.UserAgent(binaryName),
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	client, err := tasksync.NewClient(tasksync.ClientConfig{
		API:                  api,
		StreamPath:           cfg.Stream.Path,
		RetryDelay:           cfg.RetryDelay(),
		MaxTransientRetries:  cfg.Stream.MaxTransientRetries,
		ReconnectDelay:       cfg.ReconnectDelay(),
		ReconcileConcurrency: cfg.Reconcile.Concurrency,
		Logger:               logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating task client: %w", err)
	}

	styled := options.format == formatText && isTerminal(stdout)
	return &environment{
		config:  cfg,
		logger:  logger,
		api:     api,
		client:  client,
		printer: newPrinter(stdout, options.format, tui.NewRenderer(tui.DefaultTheme, styled)),
		stderr:  stderr,
	}, nil
}

func (env *environment) close() {
	env.client.Disconnect()
	env.api.CloseIdleConnections()
}

// newLogger builds the process logger. Format "auto" picks a text
// handler when w is a terminal and JSON otherwise.
func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if format == "text" || (format == "auto" && isTerminal(w)) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
