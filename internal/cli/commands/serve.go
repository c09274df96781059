package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/querylens/querylens/internal/cli/config"
	"github.com/querylens/querylens/internal/engine"
	"github.com/querylens/querylens/pkg/adapter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the analyzers over HTTP",
		Long: `Run an HTTP server exposing the analysis engine as JSON.

POST /api/v1/analyze with {"mode", "query", "params"} returns the full
analysis report; GET /api/v1/health reports target connectivity.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "Listen address")

	return cmd
}

// analyzeRequest is the POST /api/v1/analyze body.
type analyzeRequest struct {
	Mode   string        `json:"mode"`
	Query  string        `json:"query"`
	Params analyzeParams `json:"params"`
}

// analyzeParams carries the union of mode parameters.
type analyzeParams struct {
	ExpectedSum   *float64          `json:"expected_sum,omitempty"`
	ExpectedCount *float64          `json:"expected_count,omitempty"`
	ExpectedAvg   *float64          `json:"expected_avg,omitempty"`
	Table         string            `json:"table,omitempty"`
	KeyColumns    []string          `json:"key_columns,omitempty"`
	Tuple         map[string]string `json:"tuple,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// server carries the shared target connection; every request builds its
// own engine over it so analyses share no state.
type server struct {
	adapter adapter.Adapter
	cfg     *config.Config
	logger  *slog.Logger
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &server{
		adapter: cmdCtx.Adapter,
		cfg:     cmdCtx.Cfg,
		logger:  cmdCtx.Logger,
	}

	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(cmdCtx.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", srv.handleAnalyze)
		r.Get("/health", srv.handleHealth)
	})

	httpSrv := &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cmdCtx.Logger.Info("serving", "addr", opts.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.adapter.Query(r.Context(), "SELECT 1"); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "target": s.cfg.Target.Type})
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	report, err := s.analyze(r.Context(), &req)
	if err != nil {
		writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// analyze runs one analysis with a per-request engine.
func (s *server) analyze(ctx context.Context, req *analyzeRequest) (*engine.Report, error) {
	eng, err := newEngine(s.cfg, s.adapter, s.logger)
	if err != nil {
		return nil, err
	}

	model, err := eng.BuildModel(req.Query)
	if err != nil {
		return nil, err
	}

	var result engine.Explainer
	switch req.Mode {
	case "agg":
		result, err = eng.Aggregate(ctx, model, engine.AggregateParams{
			ExpectedSum:   req.Params.ExpectedSum,
			ExpectedCount: req.Params.ExpectedCount,
			ExpectedAvg:   req.Params.ExpectedAvg,
			Table:         req.Params.Table,
			KeyColumns:    req.Params.KeyColumns,
		})
	case "join":
		result, err = eng.Join(ctx, model, engine.JoinParams{ExpectedCount: req.Params.ExpectedCount})
	case "predicate":
		result, err = eng.Predicate(ctx, model, engine.PredicateParams{
			Table:      req.Params.Table,
			KeyColumns: req.Params.KeyColumns,
		})
	case "why-not":
		keys := make([]engine.KeyValue, 0, len(req.Params.Tuple))
		for col, val := range req.Params.Tuple {
			keys = append(keys, engine.KeyValue{Column: col, Value: val})
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Column < keys[j].Column })
		result, err = eng.WhyNot(ctx, model, engine.WhyNotParams{
			Table: req.Params.Table,
			Keys:  keys,
		})
	default:
		return nil, &engine.InvalidParameterError{
			Param:  "mode",
			Reason: fmt.Sprintf("unknown mode %q: want agg, join, predicate or why-not", req.Mode),
		}
	}
	if err != nil {
		return nil, err
	}

	return engine.NewReport(req.Mode, req.Query, result), nil
}

// statusForError maps the engine error taxonomy to HTTP status codes.
func statusForError(err error) int {
	var invalid *engine.InvalidParameterError
	var unsupported *engine.UnsupportedQueryShapeError
	var unreachable *engine.TupleUnreachableError
	switch {
	case errors.As(err, &invalid), errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity
	case errors.As(err, &unreachable):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
