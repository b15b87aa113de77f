package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/projectgrid/internal/models"
	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
)

// writeModelError writes err as a JSON error body. Internal and unknown errors
// get a generic message.
func writeModelError(w http.ResponseWriter, status int, err error) {
	var e *models.Error
	if errors.As(err, &e) && e.Kind != models.KindInternal {
		pkghttp.WriteError(w, status, string(e.Kind), e.Code, e.Message)
		return
	}
	pkghttp.WriteInternalError(w, "Internal server error")
}

// resourceStatus maps service errors for the workspace, project and task endpoints
func resourceStatus(err error) int {
	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindConflict:
		return http.StatusConflict
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindAuth:
		if errors.Is(err, models.ErrForbidden) {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// accountStatus maps account flow errors. Conflicts and credential failures are
// reported as 400; only token failures are 401.
func accountStatus(err error) int {
	switch models.KindOf(err) {
	case models.KindValidation, models.KindConflict:
		return http.StatusBadRequest
	case models.KindAuth:
		if errors.Is(err, models.ErrInvalidOrExpiredToken) || errors.Is(err, models.ErrTokenExpired) {
			return http.StatusUnauthorized
		}
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeResourceError(w http.ResponseWriter, err error) {
	writeModelError(w, resourceStatus(err), err)
}

func writeAccountError(w http.ResponseWriter, err error) {
	writeModelError(w, accountStatus(err), err)
}
