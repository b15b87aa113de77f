//go:build integration

package repositories_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/BradenHooton/projectgrid/internal/repositories"
	"github.com/BradenHooton/projectgrid/internal/testutil"
)

var testDB *testutil.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := testutil.SetupTestDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up test database: %v\n", err)
		os.Exit(1)
	}
	testDB = db

	code := m.Run()

	if err := testDB.Teardown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to tear down test database: %v\n", err)
	}
	os.Exit(code)
}

func cleanup(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
}

func TestUserRepository(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := repositories.NewUserRepository(testDB.DB)

	user, err := repo.Create(ctx, &models.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.IsEmailVerified)

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, "ADA@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := repo.Create(ctx, &models.User{Name: "Other", Email: "Ada@Example.com", PasswordHash: "h"})
		assert.True(t, errors.Is(err, models.ErrConflict))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.True(t, errors.Is(err, models.ErrNotFound))

		_, err = repo.GetByID(ctx, "not-a-uuid")
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("mutations", func(t *testing.T) {
		verified, err := repo.MarkEmailVerified(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, verified.IsEmailVerified)

		changed := time.Now().UTC().Truncate(time.Microsecond)
		updated, err := repo.UpdatePassword(ctx, user.ID, "h2", changed)
		require.NoError(t, err)
		assert.Equal(t, "h2", updated.PasswordHash)
		require.NotNil(t, updated.PasswordChangedAt)
		assert.True(t, updated.PasswordChangedAt.Equal(changed))

		require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, changed))
		reloaded, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, reloaded.LastLogin)

		renamed, err := repo.UpdateName(ctx, user.ID, "Ada L.")
		require.NoError(t, err)
		assert.Equal(t, "Ada L.", renamed.Name)
	})
}

func TestVerificationTokenRepository(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	user, err := testDB.SeedUser(ctx, "Ada", "ada@example.com", "Sup3r$ecret", false)
	require.NoError(t, err)

	repo := repositories.NewVerificationTokenRepository(testDB.DB)
	now := time.Now().UTC()

	older, err := repo.Create(ctx, &models.VerificationToken{
		UserID: user.ID, Purpose: models.PurposeEmailVerification, TokenHash: "hash-1",
		ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-2 * time.Hour),
	})
	require.NoError(t, err)
	newer, err := repo.Create(ctx, &models.VerificationToken{
		UserID: user.ID, Purpose: models.PurposeEmailVerification, TokenHash: "hash-2",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.VerificationToken{
		UserID: user.ID, Purpose: models.PurposePasswordReset, TokenHash: "hash-3",
		ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now,
	})
	require.NoError(t, err)

	t.Run("lookup by hash", func(t *testing.T) {
		got, err := repo.GetByUserAndHash(ctx, user.ID, "hash-1")
		require.NoError(t, err)
		assert.Equal(t, older.ID, got.ID)

		_, err = repo.GetByUserAndHash(ctx, user.ID, "missing")
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("latest by purpose", func(t *testing.T) {
		got, err := repo.GetLatestByUserAndPurpose(ctx, user.ID, models.PurposeEmailVerification)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, got.ID)
	})

	t.Run("duplicate hash conflicts", func(t *testing.T) {
		_, err := repo.Create(ctx, &models.VerificationToken{
			UserID: user.ID, Purpose: models.PurposeEmailVerification, TokenHash: "hash-2", ExpiresAt: now,
		})
		assert.True(t, errors.Is(err, models.ErrConflict))
	})

	t.Run("delete expired", func(t *testing.T) {
		n, err := repo.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = repo.GetByUserAndHash(ctx, user.ID, "hash-1")
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("delete by id and purpose", func(t *testing.T) {
		require.NoError(t, repo.DeleteByID(ctx, newer.ID))
		assert.True(t, errors.Is(repo.DeleteByID(ctx, newer.ID), models.ErrNotFound))

		n, err := repo.DeleteByUserAndPurpose(ctx, user.ID, models.PurposePasswordReset)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestWorkspaceRepository(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	owner, err := testDB.SeedUser(ctx, "Ada", "ada@example.com", "Sup3r$ecret", true)
	require.NoError(t, err)
	bob, err := testDB.SeedUser(ctx, "Bob", "bob@example.com", "Sup3r$ecret", true)
	require.NoError(t, err)

	repo := repositories.NewWorkspaceRepository(testDB.DB)
	ws, err := repo.Create(ctx, &models.Workspace{Name: "Platform", OwnerID: owner.ID})
	require.NoError(t, err)

	role, err := repo.GetMemberRole(ctx, ws.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)

	_, err = repo.GetMemberRole(ctx, ws.ID, bob.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, repo.AddMember(ctx, ws.ID, bob.ID, models.RoleViewer))
	assert.True(t, errors.Is(repo.AddMember(ctx, ws.ID, bob.ID, models.RoleMember), models.ErrConflict))

	members, err := repo.ListMembers(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "ada@example.com", members[0].Email)
	assert.Equal(t, models.RoleViewer, members[1].Role)

	list, err := repo.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ws.ID, list[0].ID)

	ws.Name = "Platform Team"
	updated, err := repo.Update(ctx, ws)
	require.NoError(t, err)
	assert.Equal(t, "Platform Team", updated.Name)

	require.NoError(t, repo.Delete(ctx, ws.ID))
	_, err = repo.GetByID(ctx, ws.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = repo.GetMemberRole(ctx, ws.ID, bob.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound), "memberships cascade with the workspace")
}

func TestProjectTaskAndActivityRepositories(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	owner, err := testDB.SeedUser(ctx, "Ada", "ada@example.com", "Sup3r$ecret", true)
	require.NoError(t, err)
	ws, err := testDB.SeedWorkspace(ctx, owner.ID, "Platform")
	require.NoError(t, err)

	projects := repositories.NewProjectRepository(testDB.DB)
	tasks := repositories.NewTaskRepository(testDB.DB)
	activities := repositories.NewActivityRepository(testDB.DB)

	project, err := projects.Create(ctx, &models.Project{
		WorkspaceID: ws.ID, Title: "Launch", Status: models.ProjectPlanning, CreatedBy: owner.ID,
	})
	require.NoError(t, err)

	listed, err := projects.ListByWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	project.Status = models.ProjectInProgress
	project, err = projects.Update(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectInProgress, project.Status)

	assignee := owner.ID
	task, err := tasks.Create(ctx, &models.Task{
		ProjectID: project.ID, Title: "Write docs", Status: models.TaskTodo, Priority: models.PriorityHigh,
		AssigneeID: &assignee, Labels: []string{"docs", "q2"}, CreatedBy: owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "q2"}, task.Labels)

	other, err := tasks.Create(ctx, &models.Task{
		ProjectID: project.ID, Title: "Old", Status: models.TaskDone, Priority: models.PriorityLow, CreatedBy: owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{}, other.Labels)

	wsID, err := tasks.WorkspaceIDForTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, wsID)

	t.Run("archive hides from default listing", func(t *testing.T) {
		other.IsArchived = true
		_, err := tasks.Update(ctx, other)
		require.NoError(t, err)

		visible, err := tasks.ListByProject(ctx, project.ID, models.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, visible, 1)
		assert.Equal(t, task.ID, visible[0].ID)

		all, err := tasks.ListByProject(ctx, project.ID, models.TaskFilter{IncludeArchived: true})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		byAssignee, err := tasks.ListByProject(ctx, project.ID, models.TaskFilter{AssigneeID: owner.ID, Status: models.TaskTodo})
		require.NoError(t, err)
		assert.Len(t, byAssignee, 1)
	})

	t.Run("subtasks", func(t *testing.T) {
		st, err := tasks.AddSubtask(ctx, &models.Subtask{TaskID: task.ID, Title: "outline"})
		require.NoError(t, err)

		done, err := tasks.SetSubtaskCompleted(ctx, task.ID, st.ID, true)
		require.NoError(t, err)
		assert.True(t, done.Completed)

		_, err = tasks.SetSubtaskCompleted(ctx, other.ID, st.ID, true)
		assert.True(t, errors.Is(err, models.ErrNotFound), "subtask must belong to the task")

		loaded, err := tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Subtasks, 1)
		assert.True(t, loaded.Subtasks[0].Completed)
	})

	t.Run("comments", func(t *testing.T) {
		c, err := tasks.AddComment(ctx, &models.Comment{TaskID: task.ID, AuthorID: owner.ID, Text: "LGTM"})
		require.NoError(t, err)
		assert.Equal(t, "Ada", c.AuthorName)

		comments, err := tasks.ListComments(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, "LGTM", comments[0].Text)
	})

	t.Run("activity newest first", func(t *testing.T) {
		base := time.Now().UTC()
		require.NoError(t, activities.Create(ctx, &models.Activity{
			UserID: owner.ID, ResourceType: models.ResourceTypeTask, ResourceID: task.ID,
			Action: models.ActivityCreatedTask, CreatedAt: base.Add(-time.Minute),
		}))
		require.NoError(t, activities.Create(ctx, &models.Activity{
			UserID: owner.ID, ResourceType: models.ResourceTypeTask, ResourceID: task.ID,
			Action: models.ActivityChangedStatus, Details: models.ActivityDetails{"from": "todo", "to": "done"}, CreatedAt: base,
		}))

		entries, err := activities.ListByResource(ctx, models.ResourceTypeTask, task.ID, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, models.ActivityChangedStatus, entries[0].Action)
		assert.Equal(t, "done", entries[0].Details["to"])
		assert.Equal(t, "Ada", entries[0].UserName)

		limited, err := activities.ListByResource(ctx, models.ResourceTypeTask, task.ID, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}
