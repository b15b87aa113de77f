package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Activity actions recorded against a resource
const (
	ActivityCreatedTask      = "created_task"
	ActivityUpdatedTask      = "updated_task"
	ActivityChangedStatus    = "changed_status"
	ActivityArchivedTask     = "archived_task"
	ActivityAddedSubtask     = "added_subtask"
	ActivityCompletedSubtask = "completed_subtask"
	ActivityReopenedSubtask  = "reopened_subtask"
	ActivityAddedComment     = "added_comment"
	ActivityCreatedProject   = "created_project"
	ActivityUpdatedProject   = "updated_project"
	ActivityCreatedWorkspace = "created_workspace"
	ActivityAddedMember      = "added_member"
)

// Resource types
const (
	ResourceTypeTask      = "task"
	ResourceTypeProject   = "project"
	ResourceTypeWorkspace = "workspace"
)

// Activity is an append-only log entry describing a change made by a user
type Activity struct {
	ID           string
	UserID       string
	UserName     string // joined from users
	ResourceType string
	ResourceID   string
	Action       string
	Details      ActivityDetails
	CreatedAt    time.Time
}

// ActivityDetails holds additional context for an activity entry
type ActivityDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (ad *ActivityDetails) Scan(value interface{}) error {
	if value == nil {
		*ad = make(ActivityDetails)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return NewValidationError("unsupported activity details type %T", value)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*ad = ActivityDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (ad ActivityDetails) Value() (driver.Value, error) {
	if ad == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(ad))
}
