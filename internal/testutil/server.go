package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/projectgrid/internal/auth"
	"github.com/BradenHooton/projectgrid/internal/database"
	"github.com/BradenHooton/projectgrid/internal/email"
	"github.com/BradenHooton/projectgrid/internal/handlers"
	middlewareCustom "github.com/BradenHooton/projectgrid/internal/middleware"
	"github.com/BradenHooton/projectgrid/internal/repositories"
	"github.com/BradenHooton/projectgrid/internal/routes"
	"github.com/BradenHooton/projectgrid/internal/services"
	pkgauth "github.com/BradenHooton/projectgrid/pkg/auth"
	pkglogger "github.com/BradenHooton/projectgrid/pkg/logger"
)

// TestUserAgent is sent on every request so the bot guard lets it through
const TestUserAgent = "Mozilla/5.0 (integration test)"

// MailBox captures outgoing emails
type MailBox struct {
	mu   sync.Mutex
	sent []email.Message
}

// Send records msg
func (m *MailBox) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Count returns how many emails were sent
func (m *MailBox) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// LastTokenFor extracts the token query parameter from the newest email to recipient
func (m *MailBox) LastTokenFor(recipient string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if !strings.EqualFold(m.sent[i].To, recipient) {
			continue
		}
		for _, field := range strings.Fields(m.sent[i].TextBody) {
			u, err := url.Parse(field)
			if err != nil {
				continue
			}
			if tok := u.Query().Get("token"); tok != "" {
				return tok
			}
		}
	}
	return ""
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server  *httptest.Server
	DB      *database.DB
	MailBox *MailBox
}

// NewTestServer initializes a complete HTTP server with real database and captured email
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))

	tokenManager, err := auth.NewTokenManager(auth.TokenConfig{Secret: "test-secret-32-characters-long-for-testing"})
	if err != nil {
		panic(err)
	}

	mailBox := &MailBox{}
	auditLogger := pkglogger.NewAuditLogger(logger)

	userRepo := repositories.NewUserRepository(db)
	tokenRepo := repositories.NewVerificationTokenRepository(db)
	workspaceRepo := repositories.NewWorkspaceRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	activityRepo := repositories.NewActivityRepository(db)

	accountService := services.NewAccountService(services.AccountDeps{
		Users:       userRepo,
		Tokens:      tokenRepo,
		Issuer:      tokenManager,
		Hasher:      pkgauth.NewHasher(bcrypt.MinCost),
		Mailer:      email.NewDispatcher(mailBox, 5*time.Second, logger),
		Composer:    email.NewComposer("http://localhost:5173", "ProjectGrid"),
		Logger:      logger,
		AuditLogger: auditLogger,
	}, services.DefaultAccountConfig())

	h := routes.Handlers{
		Auth:       handlers.NewAuthHandler(accountService),
		Users:      handlers.NewUserHandler(services.NewUserService(userRepo, logger)),
		Workspaces: handlers.NewWorkspaceHandler(services.NewWorkspaceService(workspaceRepo, userRepo, activityRepo, logger, auditLogger)),
		Projects:   handlers.NewProjectHandler(services.NewProjectService(projectRepo, workspaceRepo, activityRepo, logger)),
		Tasks:      handlers.NewTaskHandler(services.NewTaskService(taskRepo, projectRepo, workspaceRepo, activityRepo, logger)),
		Health:     handlers.NewHealthHandler(db, logger),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(r, h, routes.Options{
		BotProtection:  true,
		TokenVerifier:  tokenManager,
		UserRepository: userRepo,
		Logger:         logger,
	})

	return &TestServer{
		Server:  httptest.NewServer(r),
		DB:      db,
		MailBox: mailBox,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", TestUserAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a login token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{"Authorization": "Bearer " + token})
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
