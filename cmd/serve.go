package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/cache"
	"github.com/staffloop/intel-cli/internal/classify"
	"github.com/staffloop/intel-cli/internal/config"
	"github.com/staffloop/intel-cli/internal/extract"
	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/rank"
	"github.com/staffloop/intel-cli/internal/runlog"
	"github.com/staffloop/intel-cli/internal/scoring"
	"github.com/staffloop/intel-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the intelligence read API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runs, err := initRunLog(st)
		if err != nil {
			return err
		}

		api := newAPIServer(st, runs, cache.NewMemory(), cfg)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type apiServer struct {
	store store.Store
	runs  runlog.Log
	cache cache.Cache
	ttl   time.Duration
	cfg   *config.Config
}

func newAPIServer(st store.Store, runs runlog.Log, c cache.Cache, cfg *config.Config) *apiServer {
	return &apiServer{
		store: st,
		runs:  runs,
		cache: c,
		ttl:   time.Duration(cfg.Cache.TTLSecs) * time.Second,
		cfg:   cfg,
	}
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/signals", s.handleListSignals)
		r.Get("/signals/{id}", s.handleGetSignal)
		r.Post("/signals/{id}/convert", s.handleConvertSignal)
		r.Get("/export/{entity}.csv", s.handleExport)
		r.Get("/vendors", s.handleListVendors)
		r.Get("/vendors/{id}/contacts", s.handleListVendorContacts)
		r.Get("/clients", s.handleListClients)
		r.Get("/consultants", s.handleListConsultants)
		r.Get("/trust", s.handleListTrust)
		r.Get("/stats/categories", s.handleCategoryStats)
		r.Get("/runs", s.handleListRuns)
		r.Post("/ops/{stage}", s.handleRunStage)
	})

	return r
}

// cached serves a read endpoint through the TTL cache, keyed by the full
// request URL.
func (s *apiServer) cached(w http.ResponseWriter, r *http.Request, load func() (any, error)) {
	key := r.URL.RequestURI()
	if v, ok := s.cache.Get(key); ok {
		respondJSON(w, http.StatusOK, v)
		return
	}
	v, err := load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.cache.Set(key, v, s.ttl)
	respondJSON(w, http.StatusOK, v)
}

func (s *apiServer) handleListSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.SignalFilter{
		Search: q.Get("q"),
		Status: model.SignalStatus(q.Get("status")),
		Limit:  intParam(q.Get("limit"), 100),
		Offset: intParam(q.Get("offset"), 0),
	}
	if raw := q.Get("min_score"); raw != "" {
		if min, err := strconv.ParseFloat(raw, 64); err == nil {
			f.MinScore = &min
		}
	}
	s.cached(w, r, func() (any, error) {
		signals, err := s.store.ListSignals(r.Context(), f)
		if err != nil {
			return nil, err
		}
		if signals == nil {
			signals = []model.RequisitionSignal{}
		}
		return signals, nil
	})
}

func (s *apiServer) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid signal id"))
		return
	}
	sig, err := s.store.GetSignal(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if sig == nil {
		respondError(w, http.StatusNotFound, eris.New("signal not found"))
		return
	}
	respondJSON(w, http.StatusOK, sig)
}

func (s *apiServer) handleConvertSignal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid signal id"))
		return
	}

	var req struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}
	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, eris.New("tenant_id is required"))
		return
	}

	sig, err := s.store.GetSignal(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if sig == nil {
		respondError(w, http.StatusNotFound, eris.New("signal not found"))
		return
	}

	// The status guard makes conversion single-shot; a second attempt
	// conflicts instead of minting another job.
	if err := s.store.MarkSignalConverted(r.Context(), id); err != nil {
		respondError(w, http.StatusConflict, err)
		return
	}

	job := &model.Job{
		ID:       uuid.NewString(),
		TenantID: req.TenantID,
		SignalID: sig.ID,
		Title:    sig.Title,
		Location: sig.Location,
		RateText: sig.RateText,
	}
	if err := s.store.InsertJob(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	s.cache.Invalidate("/api/signals")
	zap.L().Info("signal converted",
		zap.Int64("signal_id", sig.ID),
		zap.String("job_id", job.ID),
	)
	respondJSON(w, http.StatusCreated, job)
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	var write func(io.Writer) error
	switch entity {
	case "signals":
		signals, err := s.store.ListSignals(r.Context(), store.SignalFilter{Limit: 1000})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		write = func(out io.Writer) error { return writeSignalsCSV(out, signals) }
	case "vendors":
		vendors, err := s.store.ListVendorCompanies(r.Context(), store.CompanyFilter{Limit: 1000})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		write = func(out io.Writer) error { return writeVendorsCSV(out, vendors) }
	case "consultants":
		consultants, err := s.store.ListConsultants(r.Context(), store.ConsultantFilter{Limit: 1000})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		write = func(out io.Writer) error { return writeConsultantsCSV(out, consultants) }
	default:
		respondError(w, http.StatusNotFound, eris.Errorf("unknown export %q", entity))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entity+".csv"))
	if err := write(w); err != nil {
		zap.L().Error("csv export failed", zap.String("entity", entity), zap.Error(err))
	}
}

func (s *apiServer) handleListVendorContacts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid vendor id"))
		return
	}
	s.cached(w, r, func() (any, error) {
		contacts, err := s.store.ListVendorContacts(r.Context(), id)
		if err != nil {
			return nil, err
		}
		if contacts == nil {
			contacts = []model.VendorContact{}
		}
		return contacts, nil
	})
}

func (s *apiServer) handleListVendors(w http.ResponseWriter, r *http.Request) {
	f := companyFilter(r)
	s.cached(w, r, func() (any, error) {
		return s.store.ListVendorCompanies(r.Context(), f)
	})
}

func (s *apiServer) handleListClients(w http.ResponseWriter, r *http.Request) {
	f := companyFilter(r)
	s.cached(w, r, func() (any, error) {
		return s.store.ListClientCompanies(r.Context(), f)
	})
}

func (s *apiServer) handleListConsultants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ConsultantFilter{
		Search: q.Get("q"),
		Limit:  intParam(q.Get("limit"), 100),
		Offset: intParam(q.Get("offset"), 0),
	}
	s.cached(w, r, func() (any, error) {
		return s.store.ListConsultants(r.Context(), f)
	})
}

func (s *apiServer) handleListTrust(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, func() (any, error) {
		return s.store.ListVendorTrustScores(r.Context())
	})
}

func (s *apiServer) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, func() (any, error) {
		return s.store.CountMessagesByCategory(r.Context())
	})
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"), 20)
	entries, err := s.runs.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// handleRunStage triggers one pipeline stage synchronously. Sync is
// excluded on purpose: it talks to the mail provider and belongs to the
// CLI and daemon, not a request handler.
func (s *apiServer) handleRunStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stage := chi.URLParam(r, "stage")

	var fn func() (map[string]int64, error)
	switch stage {
	case runlog.StageClassify:
		engine := classify.NewEngine(s.store, classify.New(s.cfg.Classify.OwnDomain), s.cfg.Classify.BatchSize)
		fn = func() (map[string]int64, error) {
			res, err := engine.Incremental(ctx)
			if err != nil {
				return nil, err
			}
			return res.Counts(), nil
		}
	case runlog.StageExtract:
		skills, err := extract.NewSkillMatcher()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		engine := extract.NewEngine(s.store, skills, s.cfg.Classify.OwnDomain, s.cfg.Classify.BatchSize)
		fn = func() (map[string]int64, error) {
			res, err := engine.All(ctx)
			if err != nil {
				return nil, err
			}
			return res.Counts(), nil
		}
	case runlog.StageScore:
		fn = func() (map[string]int64, error) {
			trust := scoring.NewTrustEngine(s.store, s.cfg.Scoring.RecentWindowDays)
			if _, err := trust.Run(ctx); err != nil {
				return nil, err
			}
			action := scoring.NewActionabilityEngine(s.store, s.cfg.Scoring.ActionabilityBatchSize)
			res, err := action.Run(ctx)
			if err != nil {
				return nil, err
			}
			return res.Counts(), nil
		}
	case runlog.StageRank:
		fn = func() (map[string]int64, error) {
			closure := rank.NewClosureEngine(s.store, s.cfg.Queue.WindowDays)
			if _, err := closure.Run(ctx); err != nil {
				return nil, err
			}
			alloc := rank.NewAllocator(s.store, s.cfg.Queue.WindowDays, s.cfg.Queue.TopN, s.cfg.Queue.DailyCap)
			res, err := alloc.Run(ctx, s.cfg.Queue.Strategy)
			if err != nil {
				return nil, err
			}
			return res.Counts(), nil
		}
	default:
		respondError(w, http.StatusNotFound, eris.Errorf("unknown stage %q", stage))
		return
	}

	var counts map[string]int64
	err := recordRun(ctx, s.runs, stage, func() (map[string]int64, error) {
		c, err := fn()
		counts = c
		return c, err
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	s.cache.Invalidate("/api")
	respondJSON(w, http.StatusOK, map[string]any{"stage": stage, "counts": counts})
}

func companyFilter(r *http.Request) store.CompanyFilter {
	q := r.URL.Query()
	return store.CompanyFilter{
		Search: q.Get("q"),
		Limit:  intParam(q.Get("limit"), 100),
		Offset: intParam(q.Get("offset"), 0),
	}
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
