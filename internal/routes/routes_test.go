package routes_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/projectgrid/internal/auth"
	"github.com/BradenHooton/projectgrid/internal/handlers"
	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/BradenHooton/projectgrid/internal/routes"
	"github.com/BradenHooton/projectgrid/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101 Firefox/128.0"

type userStore map[string]*models.User

func (s userStore) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

type fixture struct {
	router   chi.Router
	token    string
	limited  int
	projects *handlers.MockProjectService
	tasks    *handlers.MockTaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tm, err := auth.NewTokenManager(auth.TokenConfig{Secret: "routes-test-secret-0123456789"})
	require.NoError(t, err)

	user := &models.User{ID: "u1", Name: "Ada", Email: "ada@example.com", IsEmailVerified: true}
	token, err := tm.Issue(user.ID, models.PurposeLogin, time.Hour)
	require.NoError(t, err)

	f := &fixture{
		router:   chi.NewRouter(),
		token:    token,
		projects: &handlers.MockProjectService{},
		tasks:    &handlers.MockTaskService{},
	}

	accounts := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, email, password string) (*services.LoginResult, error) {
			return &services.LoginResult{Token: "t", User: user}, nil
		},
	}

	h := routes.Handlers{
		Auth:       handlers.NewAuthHandler(accounts),
		Users:      handlers.NewUserHandler(&handlers.MockProfileService{}),
		Workspaces: handlers.NewWorkspaceHandler(&handlers.MockWorkspaceService{}),
		Projects:   handlers.NewProjectHandler(f.projects),
		Tasks:      handlers.NewTaskHandler(f.tasks),
		Health:     handlers.NewHealthHandler(handlers.HealthCheckerFunc(func(context.Context) error { return nil }), logger),
	}

	routes.RegisterRoutes(f.router, h, routes.Options{
		AuthRateLimit: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				f.limited++
				next.ServeHTTP(w, r)
			})
		},
		BotProtection:  true,
		TokenVerifier:  tm,
		UserRepository: userStore{user.ID: user},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "# metrics")
		}),
		Logger: logger,
	})
	return f
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUA)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestPublicEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")
}

func TestAuthRoutes_Middleware(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"Sup3r$ecret"}`, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.limited)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"x"}`))
	req.Header.Set("User-Agent", "curl/8.5.0")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bot_detected")
}

func TestAuthMe_RequiresToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/auth/me", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/auth/me", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"u1"`)
	assert.Equal(t, 0, f.limited, "me is not rate limited with the public auth routes")
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/users/me", "/workspaces", "/projects/p1", "/tasks/t1"} {
		w := f.do(http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestNestedRoutes_URLParams(t *testing.T) {
	f := newFixture(t)

	var gotWorkspace, gotProject, gotTask, gotSubtask string
	f.projects.ListProjectsFunc = func(ctx context.Context, userID, workspaceID string) ([]*models.Project, error) {
		gotWorkspace = workspaceID
		return nil, nil
	}
	f.projects.GetProjectFunc = func(ctx context.Context, userID, id string) (*models.Project, error) {
		gotProject = id
		return &models.Project{ID: id}, nil
	}
	f.tasks.SetSubtaskCompletedFunc = func(ctx context.Context, userID, taskID, subtaskID string, completed bool) (*models.Subtask, error) {
		gotTask, gotSubtask = taskID, subtaskID
		return &models.Subtask{ID: subtaskID, TaskID: taskID, Completed: completed}, nil
	}

	w := f.do(http.MethodGet, "/workspaces/ws1/projects", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ws1", gotWorkspace)

	w = f.do(http.MethodGet, "/projects/p9", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p9", gotProject)

	w = f.do(http.MethodPatch, "/tasks/t1/subtasks/s7", `{"completed":true}`, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", gotTask)
	assert.Equal(t, "s7", gotSubtask)
}
