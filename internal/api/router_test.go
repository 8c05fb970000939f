package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/psymetrics/internal/middleware"
	"github.com/soaringjerry/psymetrics/internal/monitoring"
)

// twoClusterJSONL yields 10 submissions where q1/q2 and q3/q4 form two
// uncorrelated pairs, so EFA retains two factors.
func twoClusterJSONL() string {
	x := []int{1, 1, 2, 2, 3, 3, 4, 4, 5, 5}
	y := []int{1, 5, 2, 4, 3, 3, 4, 2, 5, 1}
	var sb strings.Builder
	for i := range x {
		fmt.Fprintf(&sb, `{"submission_index":%d,"timestamp":"2025-09-18T10:00:00Z","answers":{"1":{"type":"scale","value":%d},"2":{"type":"scale","value":%d},"3":{"type":"slider","value":%d},"4":{"type":"slider","value":%d},"5":{"type":"text","value":"n/a"}}}`+"\n",
			i, x[i], x[i]+1, y[i], y[i])
	}
	return sb.String()
}

func newTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	NewRouter(opts).Register(mux)
	var h http.Handler = middleware.LocaleMiddleware(mux)
	if opts.Auth != nil {
		h = opts.Auth.WithAuth(h)
	}
	return h
}

func do(h http.Handler, method, target, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCreateAndFetchAnalysis(t *testing.T) {
	metrics := monitoring.New()
	h := newTestServer(t, Options{Store: NewMemoryStore(), Metrics: metrics})

	rr := do(h, http.MethodPost, "/api/analyses?name=pilot", twoClusterJSONL())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		RecordCount  int    `json:"record_count"`
		SourceDigest string `json:"source_digest"`
		Result       struct {
			SampleCount  int  `json:"sample_count"`
			EFAPerformed bool `json:"efa_performed"`
			NFactors     int  `json:"n_factors"`
		} `json:"result"`
		Interpretation struct {
			Locale string `json:"locale"`
		} `json:"interpretation"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "pilot", created.Name)
	assert.Equal(t, 10, created.RecordCount)
	assert.Len(t, created.SourceDigest, 64)
	assert.Equal(t, 10, created.Result.SampleCount)
	assert.True(t, created.Result.EFAPerformed)
	assert.Equal(t, 2, created.Result.NFactors)
	assert.Equal(t, "/api/analyses/"+created.ID, rr.Header().Get("Location"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AnalysesTotal.WithLabelValues("ok")))

	rr = do(h, http.MethodGet, "/api/analyses/"+created.ID+"?lang=zh", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"locale":"zh"`)
	assert.Contains(t, rr.Body.String(), `"factors"`)

	rr = do(h, http.MethodGet, "/api/analyses", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Reports []ReportSummary `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Reports, 1)
	assert.Equal(t, created.ID, list.Reports[0].ID)
	assert.True(t, list.Reports[0].EFAPerformed)
}

func TestCreateAnalysis_IdenticalUploadReused(t *testing.T) {
	h := newTestServer(t, Options{})
	body := twoClusterJSONL()

	first := do(h, http.MethodPost, "/api/analyses", body)
	require.Equal(t, http.StatusCreated, first.Code)
	second := do(h, http.MethodPost, "/api/analyses", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Header().Get("Location"), second.Header().Get("Location"))
}

func TestCreateAnalysis_ReverseKeying(t *testing.T) {
	h := newTestServer(t, Options{})
	body := twoClusterJSONL()

	plain := do(h, http.MethodPost, "/api/analyses", body)
	require.Equal(t, http.StatusCreated, plain.Code)
	keyed := do(h, http.MethodPost, "/api/analyses?reverse=2&scale=1-6", body)
	require.Equal(t, http.StatusCreated, keyed.Code, keyed.Body.String())
	assert.NotEqual(t, plain.Header().Get("Location"), keyed.Header().Get("Location"))

	again := do(h, http.MethodPost, "/api/analyses?reverse=2&scale=1-6", body)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, keyed.Header().Get("Location"), again.Header().Get("Location"))

	// Same keying written differently is the same analysis.
	respelled := do(h, http.MethodPost, "/api/analyses?reverse=q2,2&scale=1.0-6", body)
	require.Equal(t, http.StatusOK, respelled.Code)
	assert.Equal(t, keyed.Header().Get("Location"), respelled.Header().Get("Location"))

	bad := do(h, http.MethodPost, "/api/analyses?reverse=2&scale=6", body)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestCreateAnalysis_Rejections(t *testing.T) {
	h := newTestServer(t, Options{MaxUploadBytes: 1024})

	rr := do(h, http.MethodPost, "/api/analyses", "not json\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "input unavailable")

	twoRows := strings.Join(strings.SplitN(twoClusterJSONL(), "\n", 3)[:2], "\n")
	rr = do(h, http.MethodPost, "/api/analyses", twoRows)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "2 complete samples")

	rr = do(h, http.MethodPost, "/api/analyses", twoClusterJSONL())
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestExport(t *testing.T) {
	store := NewMemoryStore()
	h := newTestServer(t, Options{Store: store})
	rr := do(h, http.MethodPost, "/api/analyses", twoClusterJSONL())
	require.Equal(t, http.StatusCreated, rr.Code)
	loc := rr.Header().Get("Location")

	rr = do(h, http.MethodGet, loc+"/export?format=loadings", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "item,factor_1,factor_2,assigned_factor\n"))

	rr = do(h, http.MethodGet, loc+"/export", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "factor_id,"))

	rr = do(h, http.MethodGet, loc+"/export?format=eigenvalues", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(h, http.MethodGet, loc+"/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(h, http.MethodGet, "/api/analyses/missing/export", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExport_NoFactorSolution(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.SaveReport(context.Background(), &Report{ID: "r1", CreatedAt: time.Now(), Result: nil}))
	h := newTestServer(t, Options{Store: store})

	rr := do(h, http.MethodGet, "/api/analyses/r1/export?format=factors", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestListLimitValidation(t *testing.T) {
	h := newTestServer(t, Options{})
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/analyses?limit=zero", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/analyses?limit=5", "").Code)
}

func TestAuthProtectsMutations(t *testing.T) {
	auth, err := middleware.NewAuthenticator("test-secret", "psymetrics")
	require.NoError(t, err)
	h := newTestServer(t, Options{Auth: auth})

	rr := do(h, http.MethodPost, "/api/analyses", twoClusterJSONL())
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	tok, err := auth.SignToken("analyst", "", time.Hour)
	require.NoError(t, err)
	rr = do(h, http.MethodPost, "/api/analyses", twoClusterJSONL(), "Authorization", "Bearer "+tok)
	require.Equal(t, http.StatusCreated, rr.Code)
	loc := rr.Header().Get("Location")

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, loc, "").Code, "reads stay public")
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodDelete, loc, "").Code)
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, loc, "", "Authorization", "Bearer "+tok).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, loc, "").Code)
}
