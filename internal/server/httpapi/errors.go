package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	identityservice "task-tracker/backend/internal/identity/service"
	taskservice "task-tracker/backend/internal/task/service"
)

type apiError struct {
	status  int
	code    string
	message string
}

// errorTable maps service errors to responses; the first match wins.
var errorTable = []struct {
	target error
	resp   apiError
}{
	{identityservice.ErrUsernameTaken, apiError{http.StatusConflict, "USERNAME_TAKEN", "username already registered"}},
	{identityservice.ErrInvalidInput, apiError{http.StatusBadRequest, "INVALID_INPUT", ""}},
	{identityservice.ErrUserNotFound, apiError{http.StatusNotFound, "USER_NOT_FOUND", "user not found"}},
	{identityservice.ErrBadCredentials, apiError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "incorrect username or password"}},
	{identityservice.ErrMissingCredentials, apiError{http.StatusUnauthorized, "MISSING_CREDENTIALS", "access and refresh tokens are required"}},
	{identityservice.ErrInvalidToken, apiError{http.StatusUnauthorized, "INVALID_TOKEN", "invalid token"}},
	{identityservice.ErrSessionNotFound, apiError{http.StatusUnauthorized, "SESSION_NOT_FOUND", "session not found"}},
	{identityservice.ErrTokenMismatch, apiError{http.StatusUnauthorized, "TOKEN_MISMATCH", "invalid credentials"}},
	{identityservice.ErrStoreUnavailable, apiError{http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "service temporarily unavailable"}},
	{taskservice.ErrTaskNotFound, apiError{http.StatusNotFound, "TASK_NOT_FOUND", "task not found"}},
	{taskservice.ErrInvalidTask, apiError{http.StatusBadRequest, "INVALID_INPUT", ""}},
	{taskservice.ErrForbidden, apiError{http.StatusForbidden, "FORBIDDEN", "not allowed"}},
}

// writeError aborts the request with the mapped status and a {"code","message"} body.
// Validation errors keep their own message; everything unmapped is a 500 with a generic message.
func writeError(c *gin.Context, err error) {
	resp := apiError{http.StatusInternalServerError, "INTERNAL", "internal server error"}
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			resp = e.resp
			if resp.message == "" {
				resp.message = err.Error()
			}
			break
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(resp.status, gin.H{"code": resp.code, "message": resp.message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "INVALID_INPUT", "message": message})
}
