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


package strata

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/strataml/strata/ai"
	aiopenai "github.com/strataml/strata/ai/openai"
	"github.com/strataml/strata/config"
	"github.com/strataml/strata/gateway"
	"github.com/strataml/strata/ingest"
	"github.com/strataml/strata/memory"
	"github.com/strataml/strata/memory/archival"
	"github.com/strataml/strata/memory/recall"
	"github.com/strataml/strata/memory/working"
	"github.com/strataml/strata/queue"
	"github.com/strataml/strata/router"
	"github.com/strataml/strata/storage"
	"github.com/strataml/strata/storage/badger"
)

// System wires the storage backend, memory tiers, AI provider and queue
// transport from one Settings value. The serve and worker commands each
// build a System and pull the pieces they need from it.
type System struct {
	settings *config.Settings

	backend  *badger.Backend
	sessions storage.SessionRepository
	jobs     storage.JobRepository
	docs     storage.DocumentRepository

	redisClient *redis.Client

	workingStore working.Store
	recallStore  recall.Store
	archivalCli  archival.Client
	provider     ai.Provider
	manager      *memory.Manager

	logger *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	provider ai.Provider
}

// WithProvider overrides the AI provider, mainly for tests.
func WithProvider(p ai.Provider) SystemOption {
	return func(o *systemOptions) { o.provider = p }
}

// NewSystem opens the storage backend and constructs the memory tiers.
// With no Redis address configured, the working tier and the queue fall
// back to in-process implementations suitable for single-node use.
func NewSystem(settings *config.Settings, opts ...SystemOption) (*System, error) {
	options := &systemOptions{}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(settings.DBPath, settings.DBPath == "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sys := &System{
		settings: settings,
		backend:  backend,
		sessions: badger.NewSessionRepository(backend),
		jobs:     badger.NewJobRepository(backend),
		docs:     badger.NewDocumentRepository(backend),
		logger:   slog.Default().With("component", "system"),
	}

	if settings.RedisAddr != "" {
		sys.redisClient = redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
		sys.workingStore = working.NewRedisStore(sys.redisClient, settings.SessionTTL)
	} else {
		sys.workingStore = working.NewMemoryStore(settings.SessionTTL)
	}

	if settings.RecallPath != "" {
		sys.recallStore, err = recall.NewPersistentChromemStore(settings.RecallPath)
	} else {
		sys.recallStore, err = recall.NewChromemStore()
	}
	if err != nil {
		sys.closePartial()
		return nil, fmt.Errorf("failed to open recall store: %w", err)
	}

	sys.archivalCli = archival.NewHTTPClient(settings.ArchivalURL,
		archival.WithQueryTimeout(settings.ArchivalQueryTimeout),
		archival.WithIngestTimeout(settings.ArchivalWriteTimeout),
	)

	sys.provider = options.provider
	if sys.provider == nil {
		aiConfig := ai.NewConfig(
			ai.WithEmbeddingHost(settings.EmbedHost),
			ai.WithEmbeddingModel(settings.EmbedModel),
			ai.WithSummarizerHost(settings.SummarizerHost),
			ai.WithSummarizerModel(settings.SummarizerModel),
		)
		if err := aiConfig.Validate(); err != nil {
			sys.closePartial()
			return nil, fmt.Errorf("invalid AI configuration: %w", err)
		}
		sys.provider, err = aiopenai.NewProvider(aiConfig)
		if err != nil {
			sys.closePartial()
			return nil, fmt.Errorf("failed to create AI provider: %w", err)
		}
	}

	sys.manager, err = memory.NewManager(
		sys.sessions,
		sys.workingStore,
		sys.recallStore,
		sys.archivalCli,
		sys.provider,
		memory.WithPolicy(memory.Policy{
			ConfidenceThreshold: settings.ArchivalThreshold,
			Keywords:            memory.DefaultPolicy().Keywords,
		}),
		memory.WithPromoteAfterTurns(settings.PromoteAfterTurns),
		memory.WithArchivalAfterTurns(settings.ArchivalAfterTurns),
		memory.WithRecallTopK(settings.RecallTopK),
		memory.WithRecallMinScore(settings.RecallMinScore),
		memory.WithRecentLimit(settings.RecentLimit),
		memory.WithPromotionWorkers(settings.PromotionWorkers),
		memory.WithPromoteTimeout(settings.PromoteTimeout),
	)
	if err != nil {
		sys.closePartial()
		return nil, fmt.Errorf("failed to create memory manager: %w", err)
	}

	return sys, nil
}

// Manager returns the memory orchestrator.
func (s *System) Manager() *memory.Manager {
	return s.manager
}

// NewQueueClient builds the ingestion submit/status client over the
// configured transport.
func (s *System) NewQueueClient() (*queue.Client, error) {
	publisher, err := s.publisher()
	if err != nil {
		return nil, err
	}
	return queue.NewClient(s.jobs, s.docs, publisher, s.settings.QueuePublishTimeout), nil
}

// NewGateway builds the HTTP gateway over the system's components.
func (s *System) NewGateway() (*gateway.Server, error) {
	queueClient, err := s.NewQueueClient()
	if err != nil {
		return nil, err
	}
	return gateway.NewServer(
		s.manager,
		router.New(s.settings.ModelRoutes),
		queueClient,
		s.sessions,
		s.docs,
	)
}

// NewWorker builds an ingest worker consuming the configured transport.
// consumerName distinguishes worker processes within the consumer group.
func (s *System) NewWorker(consumerName string) (*ingest.Worker, error) {
	if s.redisClient == nil {
		return nil, fmt.Errorf("the worker requires a redis transport; set the redis address")
	}
	subscriber, err := queue.NewRedisSubscriber(s.redisClient, consumerName, s.settings.AckWait)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	pre := ingest.NewPreprocessor(s.settings.PreprocessorURL, s.settings.PreprocessTimeout)

	return ingest.NewWorker(s.jobs, s.docs, subscriber, pre, s.archivalCli, ingest.WorkerConfig{
		MaxAttempts: s.settings.MaxAttempts,
		BatchSize:   s.settings.PreprocessBatch,
		Concurrency: s.settings.WorkerConcurrency,
		Limits: ingest.ArchiveLimits{
			MaxFiles:    s.settings.MaxArchiveFiles,
			MaxFileSize: s.settings.MaxArchiveFileSize,
		},
	})
}

func (s *System) publisher() (message.Publisher, error) {
	if s.redisClient != nil {
		return queue.NewRedisPublisher(s.redisClient)
	}
	return queue.NewInMemory(), nil
}

// Close releases every resource the system owns, in reverse dependency
// order. Safe to call after a partial construction failure.
func (s *System) Close() error {
	if s.manager != nil {
		if err := s.manager.Close(); err != nil {
			s.logger.Error("error closing memory manager", "err", err)
		}
	}
	return s.closePartial()
}

func (s *System) closePartial() error {
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
		}
	}
	if s.recallStore != nil {
		if err := s.recallStore.Close(); err != nil {
			s.logger.Error("error closing recall store", "err", err)
		}
	}
	if s.workingStore != nil {
		if err := s.workingStore.Close(); err != nil {
			s.logger.Error("error closing working store", "err", err)
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("error closing redis client", "err", err)
		}
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
