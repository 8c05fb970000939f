package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/soaringjerry/psymetrics/internal/middleware"
	"github.com/soaringjerry/psymetrics/internal/monitoring"
	"github.com/soaringjerry/psymetrics/internal/services"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	defaultScale     = "1-5"
)

// Options configures a Router. Only Store is required.
type Options struct {
	Store          Store
	Logger         *zap.Logger
	Metrics        *monitoring.Metrics
	Auth           *middleware.Authenticator
	MaxUploadBytes int64
}

type Router struct {
	store     Store
	analyzer  *services.AnalysisService
	metrics   *monitoring.Metrics
	auth      *middleware.Authenticator
	logger    *zap.Logger
	maxUpload int64
	now       func() time.Time
}

func NewRouter(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.Store
	if store == nil {
		store = newMemoryStore()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &Router{
		store:     store,
		analyzer:  services.NewAnalysisService(logger.Named("analysis")),
		metrics:   opts.Metrics,
		auth:      opts.Auth,
		logger:    logger,
		maxUpload: maxUpload,
		now:       time.Now,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/analyses", rt.auth.RequireAuth(http.HandlerFunc(rt.handleCreate)))
	mux.HandleFunc("GET /api/analyses", rt.handleList)
	mux.HandleFunc("GET /api/analyses/{id}", rt.handleGet)
	mux.HandleFunc("GET /api/analyses/{id}/export", rt.handleExport)
	mux.Handle("DELETE /api/analyses/{id}", rt.auth.RequireAuth(http.HandlerFunc(rt.handleDelete)))
}

type reportView struct {
	*Report
	Interpretation *services.Interpretation `json:"interpretation"`
}

// POST /api/analyses?name=...&reverse=3,5&scale=1-5
// Body: raw-data JSON Lines. Identical uploads with identical reverse keying
// return the stored report.
func (rt *Router) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rt.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	locale := middleware.LocaleFromContext(r.Context())

	q := r.URL.Query()
	scale := q.Get("scale")
	if scale == "" {
		scale = defaultScale
	}
	keys, err := services.ParseReverseKeys(q.Get("reverse"), scale)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	analyzer := rt.analyzer
	digest := sourceDigest(body)
	if len(keys) > 0 {
		analyzer = services.NewAnalysisService(rt.logger.Named("analysis"), services.WithReverseKeyed(keys))
		digest = sourceDigest(body, []byte(services.ReverseKeySignature(keys)))
	}
	if existing, err := rt.store.FindReportByDigest(r.Context(), digest); err == nil {
		rt.logger.Info("returning stored report for identical upload", zap.String("id", existing.ID))
		w.Header().Set("Location", "/api/analyses/"+existing.ID)
		writeJSON(w, http.StatusOK, reportView{Report: existing, Interpretation: services.Interpret(existing.Result, locale)})
		return
	} else if !errors.Is(err, ErrReportNotFound) {
		rt.logger.Error("report lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "report lookup failed")
		return
	}

	records, err := services.ParseRecords(bytes.NewReader(body), rt.logger)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	start := rt.now()
	result := analyzer.Run(services.StaticSource(records))
	if rt.metrics != nil {
		rt.metrics.ObserveAnalysis(result, time.Since(start))
	}
	if result.Error != "" {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	report := &Report{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(q.Get("name")),
		CreatedAt:    rt.now().UTC(),
		SourceDigest: digest,
		RecordCount:  len(records),
		Result:       result,
	}
	if err := rt.store.SaveReport(r.Context(), report); err != nil {
		rt.logger.Error("save report failed", zap.String("id", report.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save report failed")
		return
	}
	w.Header().Set("Location", "/api/analyses/"+report.ID)
	writeJSON(w, http.StatusCreated, reportView{Report: report, Interpretation: services.Interpret(result, locale)})
}

// GET /api/analyses?limit=N
func (rt *Router) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	list, err := rt.store.ListReports(r.Context(), limit)
	if err != nil {
		rt.logger.Error("list reports failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list reports failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": list})
}

// GET /api/analyses/{id}?lang=xx
func (rt *Router) handleGet(w http.ResponseWriter, r *http.Request) {
	report, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusOK, reportView{Report: report, Interpretation: services.Interpret(report.Result, locale)})
}

// GET /api/analyses/{id}/export?format=factors|loadings|eigenvalues
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	report, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "factors"
	}
	var (
		b   []byte
		err error
	)
	switch format {
	case "factors":
		b, err = services.ExportFactorsCSV(report.Result)
	case "loadings":
		b, err = services.ExportLoadingsCSV(report.Result)
	case "eigenvalues":
		b, err = services.ExportEigenvaluesCSV(report.Result)
	default:
		writeError(w, http.StatusBadRequest, "unsupported format")
		return
	}
	if errors.Is(err, services.ErrNoFactorSolution) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+report.ID+"-"+format+".csv")
	_, _ = w.Write(b)
}

// DELETE /api/analyses/{id}
func (rt *Router) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := rt.store.DeleteReport(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, ErrReportNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		rt.logger.Error("delete report failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete report failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (rt *Router) lookup(w http.ResponseWriter, r *http.Request) (*Report, bool) {
	report, err := rt.store.GetReport(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrReportNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if err != nil {
		rt.logger.Error("get report failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get report failed")
		return nil, false
	}
	return report, true
}

// sourceDigest hashes the upload together with any analysis options that
// change its result.
func sourceDigest(body []byte, options ...[]byte) string {
	h, _ := blake2b.New256(nil)
	h.Write(body)
	for _, o := range options {
		h.Write([]byte{0})
		h.Write(o)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
