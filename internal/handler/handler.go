// Package handler implements the v1 API of the development backend.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"epistolary-lite/internal/middleware"
	"epistolary-lite/internal/model"
	"epistolary-lite/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func errorReply(c *gin.Context, code int, msg string) {
	c.JSON(code, model.Reply{Success: false, Error: msg})
}

// internalError records err on the context so the sentry middleware reports it.
func internalError(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	errorReply(c, http.StatusInternalServerError, msg)
}

// currentUser resolves the authenticated username to a user record. It writes the
// error reply itself and reports false when the request cannot continue.
func currentUser(c *gin.Context, s *store.Store) (model.User, bool) {
	username, ok := middleware.UsernameFromContext(c)
	if !ok {
		errorReply(c, http.StatusUnauthorized, "this endpoint requires authentication")
		return model.User{}, false
	}

	user, ok := s.UserByUsername(username)
	if !ok {
		_ = c.Error(errors.New("authenticated user does not exist"))
		errorReply(c, http.StatusUnauthorized, "this endpoint requires authentication")
		return model.User{}, false
	}
	return user, true
}
