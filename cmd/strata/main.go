// Copyright 2025 Strata Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/strataml/strata"
	"github.com/strataml/strata/config"
)

func main() {
	app := &cli.App{
		Name:  "strata",
		Usage: "Memory-tiered chat gateway and ingestion pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the chat gateway",
				Action: serveCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:    "listen",
						EnvVars: []string{"STRATA_LISTEN"},
						Usage:   "Gateway listen address",
						Value:   ":8080",
					},
				),
			},
			{
				Name:   "worker",
				Usage:  "Run an ingestion worker",
				Action: workerCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:  "consumer",
						Usage: "Consumer name within the worker group",
						Value: defaultConsumerName(),
					},
				),
			},
			{
				Name:   "sweep",
				Usage:  "Republish queued jobs stranded by publish failures",
				Action: sweepCommand,
				Flags: append(commonFlags(),
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only republish jobs queued at least this long ago",
						Value: 10 * time.Minute,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum jobs to republish in one run",
						Value: 100,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			EnvVars: []string{"STRATA_DB"},
			Usage:   "Path to BadgerDB database directory",
			Value:   "./strata-db",
		},
		&cli.StringFlag{
			Name:    "redis",
			EnvVars: []string{"STRATA_REDIS"},
			Usage:   "Redis address for the working tier and job queue (empty for in-process)",
		},
		&cli.StringFlag{
			Name:    "recall-path",
			EnvVars: []string{"STRATA_RECALL_PATH"},
			Usage:   "On-disk location for the recall vector store (empty for in-memory)",
		},
		&cli.StringFlag{
			Name:    "archival-url",
			EnvVars: []string{"STRATA_ARCHIVAL_URL"},
			Usage:   "Base URL of the graph-retrieval service",
			Value:   "http://localhost:9621",
		},
		&cli.StringFlag{
			Name:    "preprocessor-url",
			EnvVars: []string{"STRATA_PREPROCESSOR_URL"},
			Usage:   "Base URL of the document preprocessing service",
			Value:   "http://localhost:8090",
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			EnvVars: []string{"STRATA_EMBEDDING_HOST"},
			Usage:   "Embedding service host URL",
			Value:   "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			EnvVars: []string{"STRATA_EMBEDDING_MODEL"},
			Usage:   "Embedding model name",
			Value:   "qwen3-embedding:0.6b",
		},
		&cli.StringFlag{
			Name:    "summarizer-host",
			EnvVars: []string{"STRATA_SUMMARIZER_HOST"},
			Usage:   "Summarization service host URL",
			Value:   "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "summarizer-model",
			EnvVars: []string{"STRATA_SUMMARIZER_MODEL"},
			Usage:   "Summarization model name",
			Value:   "qwen3:8b",
		},
		&cli.IntFlag{
			Name:    "promote-after",
			EnvVars: []string{"STRATA_PROMOTE_AFTER"},
			Usage:   "Unpromoted turns that trigger working to recall promotion",
			Value:   10,
		},
		&cli.IntFlag{
			Name:    "archival-after",
			EnvVars: []string{"STRATA_ARCHIVAL_AFTER"},
			Usage:   "Unarchived turns that trigger archival forwarding",
			Value:   20,
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			EnvVars: []string{"STRATA_MAX_ATTEMPTS"},
			Usage:   "Ingestion attempts before a job fails terminally",
			Value:   3,
		},
		&cli.IntFlag{
			Name:    "max-archive-files",
			EnvVars: []string{"STRATA_MAX_ARCHIVE_FILES"},
			Usage:   "File-count ceiling per uploaded codebase archive",
			Value:   2000,
		},
		&cli.Int64Flag{
			Name:    "max-archive-file-size",
			EnvVars: []string{"STRATA_MAX_ARCHIVE_FILE_SIZE"},
			Usage:   "Byte-size ceiling per archive entry",
			Value:   1 << 20,
		},
	}
}

func settingsFromFlags(c *cli.Context) *config.Settings {
	settings := config.DefaultSettings()
	settings.DBPath = c.String("db")
	settings.RedisAddr = c.String("redis")
	settings.RecallPath = c.String("recall-path")
	settings.ArchivalURL = c.String("archival-url")
	settings.PreprocessorURL = c.String("preprocessor-url")
	settings.EmbedHost = c.String("embedding-host")
	settings.EmbedModel = c.String("embedding-model")
	settings.SummarizerHost = c.String("summarizer-host")
	settings.SummarizerModel = c.String("summarizer-model")
	settings.PromoteAfterTurns = c.Int("promote-after")
	settings.ArchivalAfterTurns = c.Int("archival-after")
	settings.MaxAttempts = c.Int("max-attempts")
	settings.MaxArchiveFiles = c.Int("max-archive-files")
	settings.MaxArchiveFileSize = c.Int64("max-archive-file-size")
	if c.IsSet("listen") {
		settings.ListenAddr = c.String("listen")
	}
	return settings
}

func serveCommand(c *cli.Context) error {
	settings := settingsFromFlags(c)

	sys, err := strata.NewSystem(settings)
	if err != nil {
		return err
	}
	defer sys.Close()

	gw, err := sys.NewGateway()
	if err != nil {
		return err
	}
	defer gw.Close()

	server := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           gw.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", settings.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func workerCommand(c *cli.Context) error {
	settings := settingsFromFlags(c)
	if settings.RedisAddr == "" {
		return fmt.Errorf("the worker requires --redis")
	}

	sys, err := strata.NewSystem(settings)
	if err != nil {
		return err
	}
	defer sys.Close()

	worker, err := sys.NewWorker(c.String("consumer"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting", "consumer", c.String("consumer"))
	return worker.Run(ctx)
}

func sweepCommand(c *cli.Context) error {
	settings := settingsFromFlags(c)

	sys, err := strata.NewSystem(settings)
	if err != nil {
		return err
	}
	defer sys.Close()

	queueClient, err := sys.NewQueueClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	olderThan := time.Now().Add(-c.Duration("older-than"))
	count, err := queueClient.Sweep(ctx, olderThan, c.Int("limit"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Republished %d stranded jobs\n", count)
	return nil
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker-1"
	}
	return host
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
