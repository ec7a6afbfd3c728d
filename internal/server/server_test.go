package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/adjudex/internal/metrics"
	"github.com/ppiankov/adjudex/internal/model"
	"github.com/ppiankov/adjudex/internal/store"
	"github.com/ppiankov/adjudex/internal/util"
)

// fakeAdjudicator approves every claim and persists the dossier
type fakeAdjudicator struct {
	store store.DecisionStore
	err   error
}

func (f *fakeAdjudicator) Adjudicate(ctx context.Context, in model.ClaimInput) (*model.Dossier, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	d := &model.Dossier{
		ID:      "dossier-" + in.ClaimID,
		ClaimID: in.ClaimID,
		Verdict: model.ClaimVerdict{Decision: model.DecisionApprove, Payout: 100},
	}
	if _, err := f.store.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func newTestServer(t *testing.T, adjErr error) (*Server, store.DecisionStore) {
	t.Helper()
	st := store.NewMemoryStore()
	reg := prometheus.NewRegistry()
	metrics.New(reg).IncrementDecision("APPROVE")
	return New(&fakeAdjudicator{store: st, err: adjErr}, st, reg, util.DiscardLogger()), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAdjudicate_CreatesDossier(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/v1/adjudications", `{"claim_id":"CLM-1","invoice":{"line_items":[]}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var d model.Dossier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "CLM-1", d.ClaimID)
	assert.Equal(t, 1, d.Version)
	assert.Equal(t, model.DecisionApprove, d.Verdict.Decision)
}

func TestAdjudicate_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed JSON", `{"claim_id":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", `{"claim_id":"CLM-1","surprise":true}`, http.StatusBadRequest, "bad_request"},
		{"missing claim id", `{"invoice":{}}`, http.StatusUnprocessableEntity, "invalid_claim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/adjudications", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body["error"])
			assert.NotEmpty(t, body["error_description"])
		})
	}
}

func TestAdjudicate_InternalErrorHidesDetail(t *testing.T) {
	srv, _ := newTestServer(t, fmt.Errorf("oracle: %w", model.ErrOracleFailure))

	rec := do(t, srv.Router(), http.MethodPost, "/v1/adjudications", `{"claim_id":"CLM-1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal_error", body["error"])
	assert.NotContains(t, body, "error_description")
}

func TestAdjudicate_CancelledIsUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, context.Canceled)

	rec := do(t, srv.Router(), http.MethodPost, "/v1/adjudications", `{"claim_id":"CLM-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDossierHistory(t *testing.T) {
	srv, st := newTestServer(t, nil)
	h := srv.Router()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := st.Save(ctx, &model.Dossier{ClaimID: "CLM-7", ID: fmt.Sprintf("d%d", i)})
		require.NoError(t, err)
	}

	rec := do(t, h, http.MethodGet, "/v1/claims/CLM-7/dossiers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []model.Dossier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 3)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, 3, all[2].Version)

	rec = do(t, h, http.MethodGet, "/v1/claims/CLM-7/dossiers/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest model.Dossier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, 3, latest.Version)
	assert.Equal(t, "d2", latest.ID)

	rec = do(t, h, http.MethodGet, "/v1/claims/CLM-7/dossiers/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second model.Dossier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, "d1", second.ID)
}

func TestDossierHistory_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	for _, path := range []string{
		"/v1/claims/NOPE/dossiers",
		"/v1/claims/NOPE/dossiers/latest",
		"/v1/claims/NOPE/dossiers/1",
	} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "not_found", decodeError(t, rec)["error"], path)
	}

	rec := do(t, h, http.MethodGet, "/v1/claims/NOPE/dossiers/zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "adjudex_decisions_total")
}
