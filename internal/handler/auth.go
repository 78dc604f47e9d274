package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/middleware"
	"epistolary-lite/internal/model"
	"epistolary-lite/internal/store"
)

type AuthHandler struct {
	Store        *store.Store
	TokenConfig  auth.TokenConfig
	CookieDomain string

	// SecureCookies marks the access token cookie https only. Cookie jars do not send
	// secure cookies over plain http, so it is only set when serving TLS.
	SecureCookies bool
}

func (h *AuthHandler) Register(c *gin.Context) {
	var in model.RegisterRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		errorReply(c, http.StatusBadRequest, "could not parse register request")
		return
	}

	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := validate.Struct(&in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Tag() == "email" {
			errorReply(c, http.StatusBadRequest, "invalid email address")
			return
		}
		errorReply(c, http.StatusBadRequest, "email, username, and password are required")
		return
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		internalError(c, err, "could not register user")
		return
	}

	user, err := h.Store.CreateUser(strings.TrimSpace(in.FullName), in.Email, in.Username, hash)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			errorReply(c, http.StatusConflict, "username already taken")
			return
		}
		internalError(c, err, "could not register user")
		return
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var in model.LoginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		errorReply(c, http.StatusBadRequest, "could not parse login request")
		return
	}

	if err := validate.Struct(&in); err != nil {
		errorReply(c, http.StatusBadRequest, "username and password are required")
		return
	}

	user, ok := h.Store.UserByUsername(in.Username)
	if !ok {
		errorReply(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := auth.CheckPassword(user.Password, in.Password); err != nil {
		errorReply(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.CreateToken(user.Username, h.TokenConfig)
	if err != nil {
		internalError(c, err, "could not create access token")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, token, int(h.TokenConfig.Expiry.Seconds()), "/", h.CookieDomain, h.SecureCookies, true)
	h.Store.TouchUser(user.ID)

	c.JSON(http.StatusOK, model.LoginReply{AccessToken: token})
}

// Logout expires the access token cookie. Tokens are stateless so a copy held
// elsewhere remains valid until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", h.CookieDomain, h.SecureCookies, true)
	c.Status(http.StatusNoContent)
}
