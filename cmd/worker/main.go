// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-mediaboard/internal/app"
	"github.com/tendant/simple-mediaboard/internal/bus"
	"github.com/tendant/simple-mediaboard/internal/config"
	"github.com/tendant/simple-mediaboard/internal/ingest"
	"github.com/tendant/simple-mediaboard/internal/metrics"
	"github.com/tendant/simple-mediaboard/pkg/schema"
)

// jobTimeout bounds one ingest request, external tools included.
const jobTimeout = 5 * time.Minute

type handler interface {
	Handle(ctx context.Context, req schema.IngestRequest) schema.IngestDone
}

type resultSink interface {
	Done(done schema.IngestDone)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(slog.Default(), "load config", err)
	}

	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("worker starting", "nats_url", cfg.NATSURL, "ingest_subject", cfg.IngestSubject, "queue", cfg.IngestQueue, "result_subject", cfg.ResultSubject, "src_dir", cfg.SrcDir, "thumb_width", cfg.ThumbWidth, "thumb_height", cfg.ThumbHeight)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observer, err := metrics.NewPrometheusObserver("", prometheus.DefaultRegisterer)
	if err != nil {
		fatal(logger, "register metrics", err)
	}

	nc, err := bus.Connect(cfg.NATSURL, logger)
	if err != nil {
		fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
	}
	logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	defer nc.Close()

	notifier := bus.NewLifecycleNotifier(nc, cfg.ResultSubject, logger)

	a, err := app.New(ctx, cfg, observer, logger, ingest.WithNotifier(notifier))
	if err != nil {
		fatal(logger, "build ingest service", err)
	}
	defer a.Close()
	logger.Info("ingest service ready", "db_driver", cfg.DBDriver, "mirror", cfg.MirrorEnabled(), "embed_hosts", cfg.Hosts())

	_, err = nc.QueueSubscribeJSON(cfg.IngestSubject, cfg.IngestQueue, jobTimeout, func(jobCtx context.Context, data []byte) {
		handleMessage(jobCtx, data, a.Service, notifier, logger)
	})
	if err != nil {
		fatal(logger, "subscribe worker", err, "subject", cfg.IngestSubject, "queue", cfg.IngestQueue)
	}
	logger.Info("listening for jobs", "subject", cfg.IngestSubject, "queue", cfg.IngestQueue)

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(nc.Connected), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("worker shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "err", err)
	}
}

// metricsMux serves /metrics and a /healthz that fails while the bus is down.
func metricsMux(connected func() bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// handleMessage decodes one request, runs it and publishes its result. A
// message that cannot be decoded is answered with a validation failure.
func handleMessage(ctx context.Context, data []byte, h handler, results resultSink, logger *slog.Logger) {
	var req schema.IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Warn("invalid ingest request", "err", err)
		results.Done(schema.IngestDone{
			Error:       fmt.Sprintf("decode request: %v", err),
			FailureType: schema.FailureTypeValidation,
			HappenedAt:  time.Now().Unix(),
		})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	jobLogger := logger.With("job_id", req.ID)
	jobLogger.Info("received job", "path", req.Path, "embed_url", req.EmbedURL)

	done := h.Handle(ctx, req)
	results.Done(done)
	if done.Error != "" {
		jobLogger.Warn("job failed", "err", done.Error, "failure_type", done.FailureType)
		return
	}
	jobLogger.Info("completed job", "reused", done.Reused, "processing_time_ms", done.ProcessingTimeMs)
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
