package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/projectgrid/internal/email"
	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/google/uuid"
)

var errStoreDown = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source shared by the service and token manager
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memUserRepo is an in-memory credential store
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User

	GetByEmailErr error
	CreateErr     error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*models.User{}}
}

func (r *memUserRepo) add(u *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	cp := *u
	r.users[u.ID] = &cp
	return u
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, models.ErrConflict
		}
	}
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.ID] = &cp
	return user, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, address string) (*models.User, error) {
	if r.GetByEmailErr != nil {
		return nil, r.GetByEmailErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(address) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memUserRepo) update(id string, fn func(u *models.User)) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	fn(u)
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) UpdateName(ctx context.Context, id, name string) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.Name = name })
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) (*models.User, error) {
	return r.update(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &changedAt
	})
}

func (r *memUserRepo) MarkEmailVerified(ctx context.Context, id string) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.IsEmailVerified = true })
}

func (r *memUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.update(id, func(u *models.User) { u.LastLogin = &at })
	return err
}

// memTokenRepo is an in-memory verification token store
type memTokenRepo struct {
	mu     sync.Mutex
	tokens []*models.VerificationToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{}
}

func (r *memTokenRepo) Create(ctx context.Context, token *models.VerificationToken) (*models.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.ID = uuid.New().String()
	cp := *token
	r.tokens = append(r.tokens, &cp)
	return token, nil
}

func (r *memTokenRepo) GetByUserAndHash(ctx context.Context, userID, tokenHash string) (*models.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserID == userID && t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memTokenRepo) GetLatestByUserAndPurpose(ctx context.Context, userID string, purpose models.TokenPurpose) (*models.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.VerificationToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.Purpose == purpose && (latest == nil || t.CreatedAt.After(latest.CreatedAt)) {
			latest = t
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memTokenRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.tokens {
		if t.ID == id {
			r.tokens = append(r.tokens[:i], r.tokens[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *memTokenRepo) DeleteByUserAndPurpose(ctx context.Context, userID string, purpose models.TokenPurpose) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.tokens[:0]
	var n int64
	for _, t := range r.tokens {
		if t.UserID == userID && t.Purpose == purpose {
			n++
			continue
		}
		kept = append(kept, t)
	}
	r.tokens = kept
	return n, nil
}

// forUser returns the stored tokens of userID with purpose
func (r *memTokenRepo) forUser(userID string, purpose models.TokenPurpose) []*models.VerificationToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.VerificationToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.Purpose == purpose {
			out = append(out, t)
		}
	}
	return out
}

// recordingMailer captures sent messages and can be told to fail
type recordingMailer struct {
	mu   sync.Mutex
	sent []email.Message
	Err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// lastToken extracts the token from the link in the most recent message
func (m *recordingMailer) lastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	body := m.sent[len(m.sent)-1].TextBody
	_, rest, ok := strings.Cut(body, "?token=")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, " \r\n"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// memWorkspaceRepo is an in-memory workspace and membership store
type memWorkspaceRepo struct {
	mu         sync.Mutex
	workspaces map[string]*models.Workspace
	members    map[string]map[string]models.WorkspaceRole

	GetMemberRoleErr error
}

func newMemWorkspaceRepo() *memWorkspaceRepo {
	return &memWorkspaceRepo{
		workspaces: map[string]*models.Workspace{},
		members:    map[string]map[string]models.WorkspaceRole{},
	}
}

func (r *memWorkspaceRepo) Create(ctx context.Context, ws *models.Workspace) (*models.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws.ID = uuid.New().String()
	ws.CreatedAt = time.Now().UTC()
	ws.UpdatedAt = ws.CreatedAt
	cp := *ws
	r.workspaces[ws.ID] = &cp
	r.members[ws.ID] = map[string]models.WorkspaceRole{ws.OwnerID: models.RoleOwner}
	return ws, nil
}

func (r *memWorkspaceRepo) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (r *memWorkspaceRepo) ListForUser(ctx context.Context, userID string) ([]*models.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Workspace{}
	for id, members := range r.members {
		if _, ok := members[userID]; ok {
			cp := *r.workspaces[id]
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memWorkspaceRepo) Update(ctx context.Context, ws *models.Workspace) (*models.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.workspaces[ws.ID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cur.Name, cur.Description, cur.Color = ws.Name, ws.Description, ws.Color
	cp := *cur
	return &cp, nil
}

func (r *memWorkspaceRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.workspaces, id)
	delete(r.members, id)
	return nil
}

func (r *memWorkspaceRepo) GetMemberRole(ctx context.Context, workspaceID, userID string) (models.WorkspaceRole, error) {
	if r.GetMemberRoleErr != nil {
		return "", r.GetMemberRoleErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.members[workspaceID][userID]
	if !ok {
		return "", models.ErrNotFound
	}
	return role, nil
}

func (r *memWorkspaceRepo) AddMember(ctx context.Context, workspaceID, userID string, role models.WorkspaceRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.members[workspaceID]
	if !ok {
		return models.ErrNotFound
	}
	if _, exists := members[userID]; exists {
		return models.ErrConflict
	}
	members[userID] = role
	return nil
}

func (r *memWorkspaceRepo) ListMembers(ctx context.Context, workspaceID string) ([]*models.WorkspaceMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.WorkspaceMember{}
	for userID, role := range r.members[workspaceID] {
		out = append(out, &models.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: role})
	}
	return out, nil
}

// memProjectRepo is an in-memory project store
type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*models.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: map[string]*models.Project{}}
}

func (r *memProjectRepo) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New().String()
	cp := *p
	r.projects[p.ID] = &cp
	return p, nil
}

func (r *memProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProjectRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Project{}
	for _, p := range r.projects {
		if p.WorkspaceID == workspaceID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memProjectRepo) Update(ctx context.Context, p *models.Project) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.projects[p.ID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cur.Title, cur.Description, cur.Status = p.Title, p.Description, p.Status
	cur.StartDate, cur.DueDate = p.StartDate, p.DueDate
	cp := *cur
	return &cp, nil
}

// memTaskRepo is an in-memory task store; it resolves workspaces through projects
type memTaskRepo struct {
	mu       sync.Mutex
	projects *memProjectRepo
	tasks    map[string]*models.Task
	subtasks map[string][]models.Subtask
	comments map[string][]*models.Comment
}

func newMemTaskRepo(projects *memProjectRepo) *memTaskRepo {
	return &memTaskRepo{
		projects: projects,
		tasks:    map[string]*models.Task{},
		subtasks: map[string][]models.Subtask{},
		comments: map[string][]*models.Comment{},
	}
}

func (r *memTaskRepo) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.New().String()
	t.Subtasks = []models.Subtask{}
	cp := *t
	r.tasks[t.ID] = &cp
	return t, nil
}

func (r *memTaskRepo) GetByID(ctx context.Context, id string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *t
	cp.Subtasks = append([]models.Subtask{}, r.subtasks[id]...)
	return &cp, nil
}

func (r *memTaskRepo) WorkspaceIDForTask(ctx context.Context, taskID string) (string, error) {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	r.mu.Unlock()
	if !ok {
		return "", models.ErrNotFound
	}
	p, err := r.projects.GetByID(ctx, t.ProjectID)
	if err != nil {
		return "", err
	}
	return p.WorkspaceID, nil
}

func (r *memTaskRepo) ListByProject(ctx context.Context, projectID string, filter models.TaskFilter) ([]*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Task{}
	for _, t := range r.tasks {
		if t.ProjectID != projectID {
			continue
		}
		if t.IsArchived && !filter.IncludeArchived {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.AssigneeID != "" && (t.AssigneeID == nil || *t.AssigneeID != filter.AssigneeID) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memTaskRepo) Update(ctx context.Context, t *models.Task) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		return nil, models.ErrNotFound
	}
	cp := *t
	cp.Subtasks = []models.Subtask{}
	r.tasks[t.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memTaskRepo) AddSubtask(ctx context.Context, s *models.Subtask) (*models.Subtask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New().String()
	r.subtasks[s.TaskID] = append(r.subtasks[s.TaskID], *s)
	return s, nil
}

func (r *memTaskRepo) ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Subtask{}, r.subtasks[taskID]...), nil
}

func (r *memTaskRepo) SetSubtaskCompleted(ctx context.Context, taskID, subtaskID string, completed bool) (*models.Subtask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.subtasks[taskID] {
		if r.subtasks[taskID][i].ID == subtaskID {
			r.subtasks[taskID][i].Completed = completed
			cp := r.subtasks[taskID][i]
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memTaskRepo) AddComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.New().String()
	r.comments[c.TaskID] = append(r.comments[c.TaskID], c)
	return c, nil
}

func (r *memTaskRepo) ListComments(ctx context.Context, taskID string) ([]*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Comment{}, r.comments[taskID]...), nil
}

// memActivityRepo records activity entries
type memActivityRepo struct {
	mu      sync.Mutex
	entries []*models.Activity

	CreateErr error
}

func (r *memActivityRepo) Create(ctx context.Context, a *models.Activity) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.New().String()
	r.entries = append(r.entries, a)
	return nil
}

func (r *memActivityRepo) ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]*models.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Activity{}
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		a := r.entries[i]
		if a.ResourceType == resourceType && a.ResourceID == resourceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memActivityRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, a := range r.entries {
		out = append(out, a.Action)
	}
	return out
}
