package models

import (
	"errors"
	"fmt"
)

// Storage-level sentinels returned by repositories
var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource already exists")
)

// ErrorKind is the stable, machine-readable category of a failure
type ErrorKind string

const (
	KindValidation ErrorKind = "ValidationError"
	KindConflict   ErrorKind = "ConflictError"
	KindAuth       ErrorKind = "AuthError"
	KindNotFound   ErrorKind = "NotFoundError"
	KindDelivery   ErrorKind = "DeliveryError"
	KindInternal   ErrorKind = "InternalError"
)

// Error is a service-level failure carrying its taxonomy kind and a stable code
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new service error
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NewValidationError creates a validation failure with a request-specific message
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "validation_failed", Message: fmt.Sprintf(format, args...)}
}

// Account lifecycle errors
var (
	ErrDuplicateEmail        = NewError(KindConflict, "duplicate_email", "An account with this email already exists")
	ErrResetInProgress       = NewError(KindConflict, "reset_in_progress", "A password reset is already in progress. Please check your email")
	ErrAlreadyVerified       = NewError(KindConflict, "already_verified", "Email is already verified")
	ErrInvalidCredentials    = NewError(KindAuth, "invalid_credentials", "Invalid email or password")
	ErrEmailNotVerified      = NewError(KindAuth, "email_not_verified", "Email not verified. Please check your email for the verification link")
	ErrInvalidOrExpiredToken = NewError(KindAuth, "invalid_token", "Invalid or expired token")
	ErrTokenExpired          = NewError(KindAuth, "token_expired", "Token has expired")
	ErrUnauthorized          = NewError(KindAuth, "unauthorized", "Authentication required")
	ErrForbidden             = NewError(KindAuth, "forbidden", "You do not have permission to perform this action")
	ErrUserNotFound          = NewError(KindNotFound, "user_not_found", "User not found")
	ErrPasswordsDoNotMatch   = NewError(KindValidation, "passwords_do_not_match", "Passwords do not match")
	ErrWeakPassword          = NewError(KindValidation, "invalid_password", "Password does not meet the requirements")
	ErrDeliveryFailed        = NewError(KindDelivery, "email_delivery_failed", "Failed to send email. Please try again later")
	ErrInternal              = NewError(KindInternal, "internal_error", "Internal server error")
)

// Workspace domain errors
var (
	ErrWorkspaceNotFound = NewError(KindNotFound, "workspace_not_found", "Workspace not found")
	ErrProjectNotFound   = NewError(KindNotFound, "project_not_found", "Project not found")
	ErrTaskNotFound      = NewError(KindNotFound, "task_not_found", "Task not found")
	ErrSubtaskNotFound   = NewError(KindNotFound, "subtask_not_found", "Subtask not found")
	ErrAlreadyMember     = NewError(KindConflict, "already_member", "User is already a member of this workspace")
	ErrAssigneeNotMember = NewError(KindValidation, "assignee_not_member", "Assignee must be a member of the workspace")
)

// KindOf returns the taxonomy kind of err, InternalError for anything unclassified
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
