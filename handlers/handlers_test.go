package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edms-tools/deliverables-admin/backend/cache"
	"github.com/edms-tools/deliverables-admin/backend/config"
	"github.com/edms-tools/deliverables-admin/backend/middleware"
	"github.com/edms-tools/deliverables-admin/backend/models"
	"github.com/edms-tools/deliverables-admin/backend/services"
)

type staticTokenSource struct{}

func (staticTokenSource) Acquire(ctx context.Context) (*services.TokenResult, error) {
	return &services.TokenResult{AccessToken: "test-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// fakeBackend emulates the OData API with canned entities and records what
// the handlers persist.
type fakeBackend struct {
	mu        sync.Mutex
	variation models.Variation
	row       models.VariationDeliverable
	gate      models.Gate
	suggested string

	created   []models.VariationDeliverable
	updated   []models.VariationDeliverable
	cancelled []string
	progress  []models.ProgressUpdate
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	respond := func(v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/CancelDeliverable"):
		f.cancelled = append(f.cancelled, path)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/ApproveVariation"):
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/RejectVariation"):
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/Variations("):
		respond(f.variation)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/VariationDeliverables("):
		respond(f.row)
	case r.Method == http.MethodGet && path == "/VariationDeliverables":
		respond(map[string]interface{}{"value": []models.VariationDeliverable{f.row}})
	case r.Method == http.MethodPost && path == "/Permissions/SetPermissionLevel":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && path == "/VariationDeliverables":
		var rec models.VariationDeliverable
		json.NewDecoder(r.Body).Decode(&rec)
		f.created = append(f.created, rec)
		respond(rec)
	case r.Method == http.MethodPatch && strings.HasPrefix(path, "/VariationDeliverables("):
		var rec models.VariationDeliverable
		json.NewDecoder(r.Body).Decode(&rec)
		f.updated = append(f.updated, rec)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && path == "/SuggestInternalDocumentNumber":
		respond(map[string]string{"value": f.suggested})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/Gates("):
		respond(f.gate)
	case r.Method == http.MethodPost && path == "/Progress/AddOrUpdateExisting":
		var update models.ProgressUpdate
		json.NewDecoder(r.Body).Decode(&update)
		f.progress = append(f.progress, update)
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

// newTestRouter wires the full handler stack (minus auth) against a fake
// backend.
func newTestRouter(t *testing.T, backend *fakeBackend) *chi.Mux {
	t.Helper()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	tokens := services.NewTokenManager(staticTokenSource{}, nil, 5*time.Minute)
	odata := services.NewODataClient(services.ODataClientConfig{BaseURL: server.URL}, tokens)

	c := cache.New(time.Minute)
	t.Cleanup(c.Close)

	h := NewHandler(&config.Config{}, c, tokens, odata)

	r := chi.NewRouter()
	for _, route := range h.Routes() {
		r.Method(route.Method, route.Path, route.Handler)
	}
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func editVariationBackend(rowStatus models.UIStatus, rowVariation string) *fakeBackend {
	variationGuid := uuid.New()
	return &fakeBackend{
		variation: models.Variation{
			Guid:        variationGuid,
			ProjectGuid: uuid.New(),
			Name:        "VO-001",
		},
		row: models.VariationDeliverable{
			Guid:                uuid.New(),
			ProjectGuid:         uuid.New(),
			VariationGuid:       uuid.New(),
			VariationName:       rowVariation,
			UIStatus:            rowStatus,
			Title:               "Pump datasheet",
			DeliverableTypeGuid: uuid.New(),
			DeliverableTypeName: "Deliverable",
			VariationHours:      10,
		},
	}
}

func TestEditDeliverable_CrossVariationDelta(t *testing.T) {
	backend := editVariationBackend(models.StatusEdit, "VO-007")
	router := newTestRouter(t, backend)

	path := "/api/v1/variations/" + backend.variation.Guid.String() +
		"/deliverables/" + backend.row.Guid.String() + "/edit"
	rec := postJSON(t, router, path, map[string]interface{}{
		"field": "variation_hours",
		"hours": 16,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var outcome models.EditOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Allowed)
	assert.NotEmpty(t, outcome.Notice)

	require.Len(t, backend.created, 1, "a delta copy should be created, not an update")
	assert.Empty(t, backend.updated)
	assert.Equal(t, float64(6), backend.created[0].VariationHours)
	assert.Equal(t, "VO-001", backend.created[0].VariationName)
}

func TestEditDeliverable_ApprovedRejected(t *testing.T) {
	backend := editVariationBackend(models.StatusApproved, "VO-001")
	router := newTestRouter(t, backend)

	path := "/api/v1/variations/" + backend.variation.Guid.String() +
		"/deliverables/" + backend.row.Guid.String() + "/edit"
	rec := postJSON(t, router, path, map[string]interface{}{
		"field": "variation_hours",
		"hours": 12,
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, backend.created)
	assert.Empty(t, backend.updated)
}

func TestEditDeliverable_AddClassificationRegeneratesNumber(t *testing.T) {
	backend := editVariationBackend(models.StatusAdd, "VO-001")
	backend.row.AreaNumber = "04"
	backend.suggested = "AB-CD-001-042"
	router := newTestRouter(t, backend)

	discipline := uuid.New()
	path := "/api/v1/variations/" + backend.variation.Guid.String() +
		"/deliverables/" + backend.row.Guid.String() + "/edit"
	rec := postJSON(t, router, path, map[string]interface{}{
		"field": "discipline",
		"guid":  discipline.String(),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, backend.updated, 1)
	assert.Equal(t, "AB-CD-001-XXX", backend.updated[0].InternalDocumentNumber,
		"the suggested number should be stored with a masked sequence")
}

func TestEditDeliverable_InvalidGuid(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	rec := postJSON(t, router, "/api/v1/variations/not-a-guid/deliverables/"+uuid.NewString()+"/edit",
		map[string]interface{}{"field": "variation_hours", "hours": 1})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelDeliverable_ForeignVariationRejected(t *testing.T) {
	backend := editVariationBackend(models.StatusEdit, "VO-007")
	router := newTestRouter(t, backend)

	path := "/api/v1/variations/" + backend.variation.Guid.String() +
		"/deliverables/" + backend.row.Guid.String() + "/cancel"
	rec := postJSON(t, router, path, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "other variations")
	assert.Empty(t, backend.cancelled)
}

func TestCancelDeliverable_OriginalCopiesFirst(t *testing.T) {
	backend := editVariationBackend(models.StatusOriginal, "VO-001")
	router := newTestRouter(t, backend)

	path := "/api/v1/variations/" + backend.variation.Guid.String() +
		"/deliverables/" + backend.row.Guid.String() + "/cancel"
	rec := postJSON(t, router, path, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, backend.created, 1, "cancelling an Original creates the variation copy")
	assert.Equal(t, models.StatusCancel, backend.created[0].UIStatus)
	assert.Empty(t, backend.cancelled)
}

func TestCancelDeliverable_EditGoesThroughBackendFunction(t *testing.T) {
	backend := editVariationBackend(models.StatusEdit, "VO-001")
	router := newTestRouter(t, backend)

	path := "/api/v1/variations/" + backend.variation.Guid.String() +
		"/deliverables/" + backend.row.Guid.String() + "/cancel"
	rec := postJSON(t, router, path, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, backend.cancelled, 1)
	assert.Contains(t, backend.cancelled[0], backend.row.Guid.String())
}

func TestListDeliverables_CachesResponse(t *testing.T) {
	backend := editVariationBackend(models.StatusOriginal, "VO-001")
	router := newTestRouter(t, backend)

	path := "/api/v1/variations/" + backend.variation.Guid.String() + "/deliverables"
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestSuggestNumber_CompleteRow(t *testing.T) {
	backend := &fakeBackend{suggested: "AB-CD-001-042"}
	router := newTestRouter(t, backend)

	discipline := uuid.New()
	rec := postJSON(t, router, "/api/v1/deliverables/number/suggest", models.VariationDeliverable{
		Guid:                uuid.New(),
		ProjectGuid:         uuid.New(),
		DeliverableTypeGuid: uuid.New(),
		DeliverableTypeName: "Deliverable",
		AreaNumber:          "04",
		DisciplineGuid:      &discipline,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "AB-CD-001-XXX")
}

func TestSuggestNumber_IncompleteRowRejected(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	rec := postJSON(t, router, "/api/v1/deliverables/number/suggest", models.VariationDeliverable{
		DeliverableTypeGuid: uuid.New(),
		DeliverableTypeName: "Deliverable",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecordProgress_GateEnforced(t *testing.T) {
	backend := &fakeBackend{gate: models.Gate{Guid: uuid.New(), Name: "IFC", MaxPercentage: 0.80}}
	router := newTestRouter(t, backend)

	update := func(proposed float64) models.ProgressUpdate {
		return models.ProgressUpdate{
			DeliverableGuid:               uuid.New(),
			PeriodGuid:                    uuid.New(),
			GateGuid:                      backend.gate.Guid,
			CumulativeEarntPercentage:     proposed,
			PreviousPeriodEarntPercentage: 0.50,
		}
	}

	rec := postJSON(t, router, "/api/v1/progress", update(0.90))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, backend.progress)

	rec = postJSON(t, router, "/api/v1/progress", update(0.70))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, backend.progress, 1)
}

func TestTokenStatusEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/token/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status models.TokenStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.HasToken, "no token acquired yet")
	assert.True(t, status.ExpiringSoon)
}

func TestSetPermission_FlushesCachedListings(t *testing.T) {
	backend := editVariationBackend(models.StatusOriginal, "VO-001")
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	tokens := services.NewTokenManager(staticTokenSource{}, nil, 5*time.Minute)
	odata := services.NewODataClient(services.ODataClientConfig{BaseURL: server.URL}, tokens)
	c := cache.New(time.Minute)
	t.Cleanup(c.Close)
	h := NewHandler(&config.Config{}, c, tokens, odata)

	r := chi.NewRouter()
	for _, route := range h.Routes() {
		r.Method(route.Method, route.Path, route.Handler)
	}

	// Warm the listing cache.
	listPath := "/api/v1/variations/" + backend.variation.Guid.String() + "/deliverables"
	listRec := httptest.NewRecorder()
	r.ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, listPath, nil))
	require.Equal(t, http.StatusOK, listRec.Code)

	cacheKey := "deliverables:" + backend.variation.Guid.String()
	_, found := c.Get(cacheKey)
	require.True(t, found, "listing should be cached after the first fetch")

	rec := postJSON(t, r, "/api/v1/permissions", map[string]string{
		"user_guid": uuid.NewString(),
		"level":     "viewer",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, found = c.Get(cacheKey)
	assert.False(t, found, "a permission change invalidates cached listings")
}

func TestSetPermission_Validation(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	rec := postJSON(t, router, "/api/v1/permissions", map[string]string{
		"user_guid": uuid.NewString(),
		"level":     "root",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutes_RBACBlocksAnonymousEdits(t *testing.T) {
	backend := editVariationBackend(models.StatusEdit, "VO-001")

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	tokens := services.NewTokenManager(staticTokenSource{}, nil, 5*time.Minute)
	odata := services.NewODataClient(services.ODataClientConfig{BaseURL: server.URL}, tokens)
	c := cache.New(time.Minute)
	t.Cleanup(c.Close)
	h := NewHandler(&config.Config{}, c, tokens, odata)

	r := chi.NewRouter()
	r.Use(middleware.Auth(middleware.AuthModeOptional))
	for _, route := range h.Routes() {
		r.With(middleware.RequireRole(route.MinRole)).Method(route.Method, route.Path, route.Handler)
	}

	path := "/api/v1/variations/" + backend.variation.Guid.String() +
		"/deliverables/" + backend.row.Guid.String() + "/edit"
	rec := postJSON(t, r, path, map[string]interface{}{"field": "variation_hours", "hours": 12})
	assert.Equal(t, http.StatusForbidden, rec.Code, "anonymous callers hold viewer only")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	healthRec := httptest.NewRecorder()
	r.ServeHTTP(healthRec, req)
	assert.Equal(t, http.StatusOK, healthRec.Code, "viewer endpoints stay open")
}
