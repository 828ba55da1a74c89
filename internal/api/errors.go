package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cmms-backend/internal/auth"
	"cmms-backend/internal/machines"
	"cmms-backend/internal/notification"
	"cmms-backend/internal/parse"
	"cmms-backend/internal/prefs"
	"cmms-backend/internal/schema"
	"cmms-backend/internal/session"
	"cmms-backend/internal/syncer"
	"cmms-backend/internal/workbook"
)

var statusTable = []struct {
	err    error
	status int
}{
	{workbook.ErrValidation, http.StatusUnprocessableEntity},
	{parse.ErrInvalidValue, http.StatusUnprocessableEntity},
	{schema.ErrInvalid, http.StatusUnprocessableEntity},
	{workbook.ErrInvalidSheetID, http.StatusUnprocessableEntity},
	{auth.ErrInvalid, http.StatusBadRequest},
	{prefs.ErrInvalidKey, http.StatusBadRequest},
	{workbook.ErrNotFound, http.StatusNotFound},
	{schema.ErrNotFound, http.StatusNotFound},
	{auth.ErrNotFound, http.StatusNotFound},
	{notification.ErrNotFound, http.StatusNotFound},
	{schema.ErrConflict, http.StatusConflict},
	{schema.ErrInUse, http.StatusConflict},
	{auth.ErrUserExists, http.StatusConflict},
	{prefs.ErrFavoritesFull, http.StatusConflict},
	{session.ErrAlreadyActive, http.StatusConflict},
	{machines.ErrForbidden, http.StatusForbidden},
	{session.ErrInvalidCredentials, http.StatusUnauthorized},
	{session.ErrExpired, http.StatusUnauthorized},
	{session.ErrNotActive, http.StatusUnauthorized},
	{session.ErrCapacityExceeded, http.StatusTooManyRequests},
	{syncer.ErrRemoteUnavailable, http.StatusBadGateway},
	{syncer.ErrPushFailed, http.StatusBadGateway},
	{workbook.ErrDeserialize, http.StatusServiceUnavailable},
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var verr *workbook.ValidationError
	if errors.As(err, &verr) {
		body["unknown_fields"] = verr.Unknown
		body["missing_fields"] = verr.Missing
	}
	if errors.Is(err, workbook.ErrDeserialize) {
		body["error"] = "no data available: " + err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
}
