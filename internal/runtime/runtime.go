package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/Vijayrathan/asl-gestr/internal/bus"
	"github.com/Vijayrathan/asl-gestr/internal/config"
	"github.com/Vijayrathan/asl-gestr/internal/eventstore"
	"github.com/Vijayrathan/asl-gestr/internal/natsserver"
	"github.com/Vijayrathan/asl-gestr/internal/recognizer"
	"github.com/Vijayrathan/asl-gestr/internal/sentence"
	"github.com/Vijayrathan/asl-gestr/internal/session"
	"github.com/Vijayrathan/asl-gestr/internal/speech"
	"github.com/Vijayrathan/asl-gestr/internal/stability"
	"github.com/Vijayrathan/asl-gestr/internal/worker"
)

// Runtime owns every component and their lifecycle. Shutdown order is the
// reverse of startup: HTTP drains first, then the worker process, then the
// bus, event store and telemetry.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer  *http.Server
	channel     *worker.Channel
	service     *recognizer.Service
	sentences   sentence.Generator
	speech      speech.Synthesizer
	events      *eventstore.Store
	busClient   *bus.Client
	embedded    *natsserver.EmbeddedServer
	tracerClose func(context.Context) error

	ready atomic.Bool
	wg    sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the service up and blocks until ctx is cancelled, then shuts
// everything down in order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Bus.Enabled {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.embedded = embedded

		busClient, err := bus.Connect(r.cfg.Bus, r.logger)
		if err != nil {
			r.embedded.Shutdown()
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		r.busClient = busClient
	}

	events, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		r.closeBus()
		return fmt.Errorf("failed to open event store: %w", err)
	}
	r.events = events

	channel, err := worker.New(r.cfg.Classifier, r.logger)
	if err != nil {
		r.closeBus()
		r.events.Close()
		return fmt.Errorf("failed to create worker channel: %w", err)
	}
	r.channel = channel
	r.observeWorker()

	store := session.NewStore(r.cfg.Classifier.StabilityThreshold)
	filter := stability.New(r.cfg.Classifier)
	r.service = recognizer.New(channel, filter, store, r.events, r.busClient, r.logger)

	if r.cfg.Sentence.Enabled {
		generator, err := sentence.NewFromConfig(r.cfg.Sentence)
		if err != nil {
			return fmt.Errorf("failed to create sentence generator: %w", err)
		}
		r.sentences = generator
	}
	if r.cfg.Speech.Enabled {
		synth, err := speech.NewFromConfig(r.cfg.Speech)
		if err != nil {
			return fmt.Errorf("failed to create speech synthesizer: %w", err)
		}
		r.speech = synth
		if err := os.MkdirAll(r.cfg.Speech.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create audio output dir: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/classify", r.handleClassify)
	mux.HandleFunc("POST /api/sentence", r.handleSentence)
	mux.HandleFunc("POST /api/session/clear", r.handleClear)
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	if r.speech != nil {
		mux.Handle("/audio/", http.StripPrefix("/audio/", http.FileServer(http.Dir(r.cfg.Speech.OutputDir))))
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	r.channel.Stop()
	r.closeBus()
	if err := r.events.Close(); err != nil {
		r.logger.Error("event store close error", slog.String("error", err.Error()))
	}
	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) closeBus() {
	r.busClient.Close()
	r.embedded.Shutdown()
}

// observeWorker exposes the channel's restart count as a metric.
func (r *Runtime) observeWorker() {
	meter := otel.Meter("asl-gestr/runtime")
	_, err := meter.Int64ObservableCounter("gestr_worker_restarts_total",
		metric.WithDescription("Unexpected classifier worker exits"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(r.channel.Restarts())
			return nil
		}))
	if err != nil {
		r.logger.Warn("failed to register worker restart metric", slog.String("error", err.Error()))
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
