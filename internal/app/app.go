package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/customHttpClient"
	"github.com/akolanti/GoIngest/internal/data/blobStore"
	"github.com/akolanti/GoIngest/internal/data/store"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	jobmodel "github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/internal/handlers"
	"github.com/akolanti/GoIngest/internal/job"
	"github.com/akolanti/GoIngest/internal/maintenance"
	"github.com/akolanti/GoIngest/internal/middleware"
	"github.com/akolanti/GoIngest/internal/rag"
	"github.com/akolanti/GoIngest/internal/rag/cleansing"
	"github.com/akolanti/GoIngest/internal/rag/embeddingFactory"
	"github.com/akolanti/GoIngest/internal/rag/extract"
	"github.com/akolanti/GoIngest/internal/rag/ingest"
	"github.com/akolanti/GoIngest/internal/rag/llm"
	"github.com/akolanti/GoIngest/internal/rag/llm/gemini"
	"github.com/akolanti/GoIngest/internal/rag/llm/openaiChat"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/akolanti/GoIngest/internal/rag/vectorStoreFactory"
	"github.com/akolanti/GoIngest/internal/server"
	"github.com/akolanti/GoIngest/internal/worker"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var logger = logger_i.NewLogger("main")

// App holds every long lived dependency of the service and of the CLI commands.
type App struct {
	Settings     *config.Settings
	Backends     *store.Backends
	Catalog      *store.InMemoryCatalog
	Blobs        docModel.BlobStore
	Stores       *vectorDB.Manager
	Orchestrator *ingest.Orchestrator
}

// New wires stores, providers and the orchestrator from settings.
func New(ctx context.Context, settings *config.Settings) (*App, error) {
	logger_i.Init(logger_i.Options{Level: settings.Log.Level, JSON: settings.Log.JSON})

	backends, err := store.Open(ctx, settings.Redis)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	logger.Info("Stores ready", "redis", backends.Redis)

	blobs, err := blobStore.New(ctx, settings.Blob)
	if err != nil {
		_ = backends.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	catalog := store.CatalogFromSettings(settings)
	stores := vectorStoreFactory.NewManager(catalog)

	httpClient := customHttpClient.New(config.VectorStoreHTTPTimeout)
	embedders := embeddingFactory.NewFactory(settings.Providers, settings.Embedding, httpClient)

	llmProvider, err := newLLMProvider(ctx, settings, httpClient)
	if err != nil {
		_ = backends.Close()
		return nil, err
	}

	orch := ingest.New(ingest.Dependencies{
		Catalog:   catalog,
		Documents: backends.Documents,
		Locker:    backends.Locker,
		Blobs:     blobs,
		Stores:    stores,
		Embedders: embedders,
		Extractor: extract.New(),
		Cleanser:  cleansing.NewLLMCleanser(cleansing.NewBasic(), llmProvider),
	}, ingest.Options{
		BatchConcurrency: settings.Ingest.BatchConcurrency,
		LockTTL:          settings.Ingest.LockTTL,
		DocumentTimeout:  settings.Ingest.DocumentTimeout,
	})

	a := &App{
		Settings:     settings,
		Backends:     backends,
		Catalog:      catalog,
		Blobs:        blobs,
		Stores:       stores,
		Orchestrator: orch,
	}
	if err := orch.EnsureCollections(ctx); err != nil {
		logger.Warn("Some configured collections are not available", "error", err)
	}
	return a, nil
}

func newLLMProvider(ctx context.Context, settings *config.Settings, httpClient *http.Client) (llm.Provider, error) {
	switch settings.LLM.Provider {
	case "openai":
		return openaiChat.New(openaiChat.Options{
			APIKey:     settings.Providers.OpenAIAPIKey,
			BaseURL:    settings.Providers.OpenAIBaseURL,
			Model:      settings.LLM.Model,
			HTTPClient: httpClient,
		}), nil
	case "google", "gemini":
		return gemini.NewGeminiClient(ctx, settings.Providers.GoogleAPIKey, settings.LLM.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", settings.LLM.Provider)
	}
}

func (a *App) Close() error {
	return errors.Join(a.Stores.Close(), a.Backends.Close())
}

// Serve runs the HTTP API, the worker pool and the maintenance jobs until SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	serviceContext, closeExternalServices := context.WithCancel(ctx)
	defer closeExternalServices()

	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel := make(chan bool, 1)
	var workerWaitGroup sync.WaitGroup

	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		DispatcherChannel: dispatcherChannel,
		JobStore:          a.Backends.Jobs,
	})
	logger.Info("Starting job service")

	handlers.InitJobHandler(service)
	handlers.InitDocumentHandler(a.Orchestrator, a.Blobs)
	middleware.Init(a.Settings.Server)

	worker.SetJobTimeout(a.Settings.Ingest.DocumentTimeout)
	worker.InitServices(service, rag.NewService(a.Orchestrator))
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	scheduler, err := maintenance.Start(serviceContext, a.Settings.Maintenance, a.Orchestrator, a.Stores)
	if err != nil {
		close(stopWorkerChannel)
		workerWaitGroup.Wait()
		return err
	}

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(gracefulShutdown)
	stopExecution := make(chan bool, 1)

	go server.ShutDownHandler(server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices: func() {
			if scheduler != nil {
				scheduler.Stop()
			}
			closeExternalServices()
		},
	})
	go server.CreateServer(a.Settings.Server.ListenAddr)

	<-stopExecution
	logger.Info("Server stopped")
	return nil
}
