// Package app wires all mockmentor subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects the
// stores, the scoring pipeline, and the HTTP surface; Run serves until the
// context is cancelled; Shutdown tears everything down in order.
//
// For testing, inject in-memory stores and mock providers via functional
// options (WithTranscriptStore, WithOracleProvider, etc.). When an option is
// not provided, New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/mockmentor/mockmentor/internal/config"
	"github.com/mockmentor/mockmentor/internal/health"
	"github.com/mockmentor/mockmentor/internal/ingest"
	"github.com/mockmentor/mockmentor/internal/observe"
	"github.com/mockmentor/mockmentor/internal/reports"
	"github.com/mockmentor/mockmentor/internal/resilience"
	"github.com/mockmentor/mockmentor/internal/scoring"
	"github.com/mockmentor/mockmentor/internal/transcript"
	"github.com/mockmentor/mockmentor/pkg/provider/embeddings"
	openaiemb "github.com/mockmentor/mockmentor/pkg/provider/embeddings/openai"
	"github.com/mockmentor/mockmentor/pkg/provider/llm"
	"github.com/mockmentor/mockmentor/pkg/provider/llm/anyllm"
	"github.com/mockmentor/mockmentor/pkg/types"
)

// defaultEmbeddingDimensions matches text-embedding-3-small, the default
// embeddings model.
const defaultEmbeddingDimensions = 1536

// App owns all subsystem lifetimes of the scoring service.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	transcripts transcript.Store
	reports     reports.Store
	oracleLLM   llm.Provider
	embedder    embeddings.Provider
	pool        *pgxpool.Pool

	// analyzer is swapped on weight hot-reload; mu guards the pointer only.
	mu       sync.RWMutex
	analyzer *scoring.Analyzer

	server *http.Server

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithTranscriptStore injects a transcript store instead of creating one from
// config.
func WithTranscriptStore(s transcript.Store) Option {
	return func(a *App) { a.transcripts = s }
}

// WithReportStore injects a report store instead of creating one from config.
func WithReportStore(s reports.Store) Option {
	return func(a *App) { a.reports = s }
}

// WithOracleProvider injects the oracle LLM instead of creating one from
// config.
func WithOracleProvider(p llm.Provider) Option {
	return func(a *App) { a.oracleLLM = p }
}

// WithEmbeddingsProvider injects the embeddings provider instead of creating
// one from config.
func WithEmbeddingsProvider(p embeddings.Provider) Option {
	return func(a *App) { a.embedder = p }
}

// WithMetrics injects a metrics bundle instead of building one from the
// global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring the stores, providers, and scoring pipeline
// from cfg. Use Option functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		a.metrics = m
	}

	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}
	if err := a.initProviders(); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}
	if err := a.setAnalyzer(cfg.Scoring.Weights); err != nil {
		return nil, fmt.Errorf("app: init analyzer: %w", err)
	}
	a.initHTTP()

	return a, nil
}

// initStorage connects the transcript and report stores: PostgreSQL when a
// DSN is configured, in-memory otherwise.
func (a *App) initStorage(ctx context.Context) error {
	if a.transcripts != nil && a.reports != nil {
		return nil // both injected
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		if a.transcripts == nil {
			a.transcripts = transcript.NewMemStore()
		}
		if a.reports == nil {
			a.reports = reports.NewMemStore()
		}
		slog.Info("storage: running in memory")
		return nil
	}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	// Register pgvector types on every new connection so the similarity
	// column can be scanned into and inserted from pgvector.Vector values.
	pcfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	dims := a.cfg.Storage.EmbeddingDimensions
	if dims <= 0 {
		dims = defaultEmbeddingDimensions
	}

	if a.transcripts == nil {
		ts, err := transcript.NewPostgresStore(ctx, pool)
		if err != nil {
			return err
		}
		a.transcripts = ts
	}
	if a.reports == nil {
		rs, err := reports.NewPostgresStore(ctx, pool, dims)
		if err != nil {
			return err
		}
		a.reports = rs
	}
	slog.Info("storage: connected to postgres", "embedding_dimensions", dims)
	return nil
}

// initProviders constructs the oracle LLM and embeddings provider from
// config. Both are optional: without an oracle, scoring is heuristic-only;
// without embeddings, similarity search is unavailable.
func (a *App) initProviders() error {
	if a.oracleLLM == nil && a.cfg.Oracle.Provider.Name != "" {
		entry := a.cfg.Oracle.Provider
		var libOpts []anyllmlib.Option
		if entry.APIKey != "" {
			libOpts = append(libOpts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			libOpts = append(libOpts, anyllmlib.WithBaseURL(entry.BaseURL))
		}

		p, err := anyllm.New(entry.Name, entry.Model, libOpts...)
		if err != nil {
			return fmt.Errorf("create oracle provider: %w", err)
		}
		a.oracleLLM = p
		slog.Info("oracle provider configured", "provider", entry.Name, "model", entry.Model)
	}

	if a.embedder == nil && a.cfg.Embeddings.Name != "" {
		entry := a.cfg.Embeddings
		var opts []openaiemb.Option
		if entry.BaseURL != "" {
			opts = append(opts, openaiemb.WithBaseURL(entry.BaseURL))
		}

		p, err := openaiemb.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return fmt.Errorf("create embeddings provider: %w", err)
		}
		a.embedder = p
		slog.Info("embeddings provider configured", "provider", entry.Name, "model", p.ModelID())
	}

	return nil
}

// setAnalyzer builds the scoring pipeline with the given weights (nil means
// defaults) and swaps it in. Called at startup and again on weight
// hot-reload.
func (a *App) setAnalyzer(weights map[types.Dimension]float64) error {
	opts := []scoring.AnalyzerOption{
		scoring.WithMetrics(a.metrics),
	}
	if weights != nil {
		opts = append(opts, scoring.WithWeights(weights))
	}
	if a.oracleLLM != nil {
		oracleOpts := []scoring.OracleOption{
			scoring.WithOracleMetrics(a.metrics),
			scoring.WithOracleBreaker(resilience.BreakerConfig{
				Name:         "oracle",
				MaxFailures:  a.cfg.Oracle.CircuitBreaker.MaxFailures,
				ResetTimeout: a.cfg.Oracle.CircuitBreaker.ResetTimeout,
				HalfOpenMax:  a.cfg.Oracle.CircuitBreaker.HalfOpenMax,
			}),
		}
		if a.cfg.Oracle.Timeout > 0 {
			oracleOpts = append(oracleOpts, scoring.WithOracleTimeout(a.cfg.Oracle.Timeout))
		}
		opts = append(opts, scoring.WithOracle(scoring.NewOracle(a.oracleLLM, oracleOpts...)))
	}

	analyzer, err := scoring.NewAnalyzer(a.transcripts, opts...)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.analyzer = analyzer
	a.mu.Unlock()
	return nil
}

// ApplyConfigChange reacts to a hot config reload. Only weight changes are
// applied live; anything flagged restart-required is logged and ignored.
func (a *App) ApplyConfigChange(d config.ConfigDiff) {
	if d.WeightsChanged {
		if err := a.setAnalyzer(d.NewWeights); err != nil {
			slog.Error("rejected reloaded scoring weights", "error", err)
		} else {
			slog.Info("scoring weights reloaded")
		}
	}
	if d.RestartRequired {
		slog.Warn("config change requires a restart to take effect")
	}
}

// initHTTP assembles the service mux: health probes, Prometheus metrics, and
// the WebSocket turn ingest endpoint.
func (a *App) initHTTP() {
	checkers := []health.Checker{}
	if a.pool != nil {
		pool := a.pool
		checkers = append(checkers, health.Checker{
			Name:  "database",
			Check: func(ctx context.Context) error { return pool.Ping(ctx) },
		})
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	ingestHandler := ingest.NewHandler(a.transcripts, a.metrics, slog.Default())
	mux.Handle("GET /ingest", observe.Middleware(a.metrics, "/ingest")(ingestHandler))

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves HTTP until ctx is cancelled, then drains the server. The
// listener address comes from server.listen_addr.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", "error", err)
	}
	return ctx.Err()
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
