package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/znz-systems/coldpipe/internal/auth"
	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/ratelimit"
	"github.com/znz-systems/coldpipe/internal/web/handlers"
)

type stubRuns struct{}

func (stubRuns) GetWorkflowRunByID(_ context.Context, id uuid.UUID) (*models.WorkflowRun, error) {
	return &models.WorkflowRun{ID: id, Status: models.RunStatusCompleted}, nil
}

func (stubRuns) ListStepCheckpoints(context.Context, uuid.UUID) ([]models.StepCheckpoint, error) {
	return nil, nil
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T, burst int) http.Handler {
	t.Helper()
	hash, err := auth.HashToken("secret")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	return NewRouter(RouterDeps{
		ContactsHandler: handlers.NewContactsHandler(nil, nil),
		RunsHandler:     handlers.NewRunsHandler(stubRuns{}),
		HealthHandler:   handlers.NewHealthHandler(stubPinger{}),
		Metrics:         http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }),
		AuthService:     auth.NewService(hash),
		Limiter:         ratelimit.NewLimiter(0.001, burst),
	})
}

func TestRouterRequiresToken(t *testing.T) {
	router := newTestRouter(t, 10)
	path := "/api/v1/runs/" + uuid.New().String()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}

func TestRouterRateLimitsAPI(t *testing.T) {
	router := newTestRouter(t, 1)
	path := "/api/v1/runs/" + uuid.New().String()

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer secret")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes[i] = rr.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %v", codes)
	}
}

func TestRouterPublicRoutes(t *testing.T) {
	router := newTestRouter(t, 10)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected metrics handler to be mounted, got %d", rr.Code)
	}
}
