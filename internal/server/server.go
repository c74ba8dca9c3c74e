package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/GoIngest/internal/adapter/utils"
	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/middleware"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var (
	server     *http.Server
	_logger    = logger_i.NewLogger("Server")
	routesOnce sync.Once
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

// Routes registers every endpoint on the shared router.
func Routes() http.Handler {
	r := utils.GetRouter()

	routesOnce.Do(func() {
		r.Router.Get("/healthz", middleware.GetHandler)
		r.Router.Get("/status/{id}", middleware.GetStatusHandler)
		r.Router.Post("/ingest", middleware.PostIngestHandler)
		r.Router.Post("/search", middleware.PostSearchHandler)
		r.Router.Get("/documents/{id}", middleware.GetDocumentHandler)
		r.Router.Delete("/documents/{id}", middleware.DeleteDocumentHandler)
		r.Router.Post("/documents/{id}/reprocess", middleware.PostReprocessHandler)
		r.Router.Get("/collections/{id}/stats", middleware.GetCollectionStatsHandler)
	})
	return r.Router
}

func CreateServer(listenAddr string) {
	server = &http.Server{
		Addr:         listenAddr,
		Handler:      Routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				_logger.Error("Could not shutdown gracefully", "error", err)
			}
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully shut down")
	case <-ctx.Done():
		_logger.Error("Force shut down")
		os.Exit(1)
	}
}
