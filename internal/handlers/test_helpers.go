package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/projectgrid/internal/auth"
	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/BradenHooton/projectgrid/internal/services"
	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthUser puts an authenticated user on the request context
func WithAuthUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), user))
}

// WithURLParams sets chi URL parameters as the router would
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks status, kind and error code of an error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedKind, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedKind, resp.Kind, "Error kind mismatch")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAccountService implements AccountService for testing
type MockAccountService struct {
	RegisterFunc             func(ctx context.Context, name, email, password string) (*models.User, error)
	LoginFunc                func(ctx context.Context, email, password string) (*services.LoginResult, error)
	VerifyEmailFunc          func(ctx context.Context, token string) (*models.User, error)
	RequestPasswordResetFunc func(ctx context.Context, email string) error
	ConfirmPasswordResetFunc func(ctx context.Context, token, newPassword, confirmPassword string) (*models.User, error)
}

func (m *MockAccountService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, name, email, password)
	}
	return nil, models.ErrInternal
}

func (m *MockAccountService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, models.ErrInternal
}

func (m *MockAccountService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, token)
	}
	return nil, models.ErrInternal
}

func (m *MockAccountService) RequestPasswordReset(ctx context.Context, email string) error {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, email)
	}
	return models.ErrInternal
}

func (m *MockAccountService) ConfirmPasswordReset(ctx context.Context, token, newPassword, confirmPassword string) (*models.User, error) {
	if m.ConfirmPasswordResetFunc != nil {
		return m.ConfirmPasswordResetFunc(ctx, token, newPassword, confirmPassword)
	}
	return nil, models.ErrInternal
}

// MockProfileService implements ProfileService for testing
type MockProfileService struct {
	GetProfileFunc    func(ctx context.Context, id string) (*models.User, error)
	UpdateProfileFunc func(ctx context.Context, id, name string) (*models.User, error)
}

func (m *MockProfileService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, id)
	}
	return nil, models.ErrInternal
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, id, name string) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, name)
	}
	return nil, models.ErrInternal
}

// MockWorkspaceService implements WorkspaceService for testing
type MockWorkspaceService struct {
	CreateWorkspaceFunc func(ctx context.Context, userID string, in services.WorkspaceInput) (*models.Workspace, error)
	ListWorkspacesFunc  func(ctx context.Context, userID string) ([]*models.Workspace, error)
	GetWorkspaceFunc    func(ctx context.Context, userID, id string) (*models.Workspace, error)
	UpdateWorkspaceFunc func(ctx context.Context, userID, id string, in services.WorkspaceInput) (*models.Workspace, error)
	DeleteWorkspaceFunc func(ctx context.Context, userID, id string) error
	AddMemberFunc       func(ctx context.Context, userID, workspaceID, email string, role models.WorkspaceRole) (*models.WorkspaceMember, error)
	ListMembersFunc     func(ctx context.Context, userID, workspaceID string) ([]*models.WorkspaceMember, error)
}

func (m *MockWorkspaceService) CreateWorkspace(ctx context.Context, userID string, in services.WorkspaceInput) (*models.Workspace, error) {
	if m.CreateWorkspaceFunc != nil {
		return m.CreateWorkspaceFunc(ctx, userID, in)
	}
	return nil, models.ErrInternal
}

func (m *MockWorkspaceService) ListWorkspaces(ctx context.Context, userID string) ([]*models.Workspace, error) {
	if m.ListWorkspacesFunc != nil {
		return m.ListWorkspacesFunc(ctx, userID)
	}
	return nil, models.ErrInternal
}

func (m *MockWorkspaceService) GetWorkspace(ctx context.Context, userID, id string) (*models.Workspace, error) {
	if m.GetWorkspaceFunc != nil {
		return m.GetWorkspaceFunc(ctx, userID, id)
	}
	return nil, models.ErrInternal
}

func (m *MockWorkspaceService) UpdateWorkspace(ctx context.Context, userID, id string, in services.WorkspaceInput) (*models.Workspace, error) {
	if m.UpdateWorkspaceFunc != nil {
		return m.UpdateWorkspaceFunc(ctx, userID, id, in)
	}
	return nil, models.ErrInternal
}

func (m *MockWorkspaceService) DeleteWorkspace(ctx context.Context, userID, id string) error {
	if m.DeleteWorkspaceFunc != nil {
		return m.DeleteWorkspaceFunc(ctx, userID, id)
	}
	return models.ErrInternal
}

func (m *MockWorkspaceService) AddMember(ctx context.Context, userID, workspaceID, email string, role models.WorkspaceRole) (*models.WorkspaceMember, error) {
	if m.AddMemberFunc != nil {
		return m.AddMemberFunc(ctx, userID, workspaceID, email, role)
	}
	return nil, models.ErrInternal
}

func (m *MockWorkspaceService) ListMembers(ctx context.Context, userID, workspaceID string) ([]*models.WorkspaceMember, error) {
	if m.ListMembersFunc != nil {
		return m.ListMembersFunc(ctx, userID, workspaceID)
	}
	return nil, models.ErrInternal
}

// MockProjectService implements ProjectService for testing
type MockProjectService struct {
	CreateProjectFunc func(ctx context.Context, userID, workspaceID string, in services.ProjectInput) (*models.Project, error)
	ListProjectsFunc  func(ctx context.Context, userID, workspaceID string) ([]*models.Project, error)
	GetProjectFunc    func(ctx context.Context, userID, id string) (*models.Project, error)
	UpdateProjectFunc func(ctx context.Context, userID, id string, in services.ProjectInput) (*models.Project, error)
}

func (m *MockProjectService) CreateProject(ctx context.Context, userID, workspaceID string, in services.ProjectInput) (*models.Project, error) {
	if m.CreateProjectFunc != nil {
		return m.CreateProjectFunc(ctx, userID, workspaceID, in)
	}
	return nil, models.ErrInternal
}

func (m *MockProjectService) ListProjects(ctx context.Context, userID, workspaceID string) ([]*models.Project, error) {
	if m.ListProjectsFunc != nil {
		return m.ListProjectsFunc(ctx, userID, workspaceID)
	}
	return nil, models.ErrInternal
}

func (m *MockProjectService) GetProject(ctx context.Context, userID, id string) (*models.Project, error) {
	if m.GetProjectFunc != nil {
		return m.GetProjectFunc(ctx, userID, id)
	}
	return nil, models.ErrInternal
}

func (m *MockProjectService) UpdateProject(ctx context.Context, userID, id string, in services.ProjectInput) (*models.Project, error) {
	if m.UpdateProjectFunc != nil {
		return m.UpdateProjectFunc(ctx, userID, id, in)
	}
	return nil, models.ErrInternal
}

// MockTaskService implements TaskService for testing
type MockTaskService struct {
	CreateTaskFunc          func(ctx context.Context, userID, projectID string, in services.TaskInput) (*models.Task, error)
	ListTasksFunc           func(ctx context.Context, userID, projectID string, filter models.TaskFilter) ([]*models.Task, error)
	GetTaskFunc             func(ctx context.Context, userID, taskID string) (*models.Task, error)
	UpdateTaskFunc          func(ctx context.Context, userID, taskID string, in services.TaskInput) (*models.Task, error)
	UpdateTaskStatusFunc    func(ctx context.Context, userID, taskID string, status models.TaskStatus) (*models.Task, error)
	ArchiveTaskFunc         func(ctx context.Context, userID, taskID string) (*models.Task, error)
	AddSubtaskFunc          func(ctx context.Context, userID, taskID, title string) (*models.Subtask, error)
	SetSubtaskCompletedFunc func(ctx context.Context, userID, taskID, subtaskID string, completed bool) (*models.Subtask, error)
	AddCommentFunc          func(ctx context.Context, userID, taskID, text string) (*models.Comment, error)
	ListCommentsFunc        func(ctx context.Context, userID, taskID string) ([]*models.Comment, error)
	ListActivityFunc        func(ctx context.Context, userID, taskID string, limit int) ([]*models.Activity, error)
}

func (m *MockTaskService) CreateTask(ctx context.Context, userID, projectID string, in services.TaskInput) (*models.Task, error) {
	if m.CreateTaskFunc != nil {
		return m.CreateTaskFunc(ctx, userID, projectID, in)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) ListTasks(ctx context.Context, userID, projectID string, filter models.TaskFilter) ([]*models.Task, error) {
	if m.ListTasksFunc != nil {
		return m.ListTasksFunc(ctx, userID, projectID, filter)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	if m.GetTaskFunc != nil {
		return m.GetTaskFunc(ctx, userID, taskID)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) UpdateTask(ctx context.Context, userID, taskID string, in services.TaskInput) (*models.Task, error) {
	if m.UpdateTaskFunc != nil {
		return m.UpdateTaskFunc(ctx, userID, taskID, in)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) UpdateTaskStatus(ctx context.Context, userID, taskID string, status models.TaskStatus) (*models.Task, error) {
	if m.UpdateTaskStatusFunc != nil {
		return m.UpdateTaskStatusFunc(ctx, userID, taskID, status)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) ArchiveTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	if m.ArchiveTaskFunc != nil {
		return m.ArchiveTaskFunc(ctx, userID, taskID)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) AddSubtask(ctx context.Context, userID, taskID, title string) (*models.Subtask, error) {
	if m.AddSubtaskFunc != nil {
		return m.AddSubtaskFunc(ctx, userID, taskID, title)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) SetSubtaskCompleted(ctx context.Context, userID, taskID, subtaskID string, completed bool) (*models.Subtask, error) {
	if m.SetSubtaskCompletedFunc != nil {
		return m.SetSubtaskCompletedFunc(ctx, userID, taskID, subtaskID, completed)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) AddComment(ctx context.Context, userID, taskID, text string) (*models.Comment, error) {
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(ctx, userID, taskID, text)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) ListComments(ctx context.Context, userID, taskID string) ([]*models.Comment, error) {
	if m.ListCommentsFunc != nil {
		return m.ListCommentsFunc(ctx, userID, taskID)
	}
	return nil, models.ErrInternal
}

func (m *MockTaskService) ListActivity(ctx context.Context, userID, taskID string, limit int) ([]*models.Activity, error) {
	if m.ListActivityFunc != nil {
		return m.ListActivityFunc(ctx, userID, taskID, limit)
	}
	return nil, models.ErrInternal
}

// HealthCheckerFunc adapts a function to HealthChecker
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}
