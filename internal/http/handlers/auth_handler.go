// Account HTTP handlers.
//
// This file exposes:
//   - POST /auth/register   (create account and sign in)
//   - POST /auth/login      (exchange credentials for a bearer token)
//   - POST /auth/logout     (revoke the current token)
//   - GET  /me              (current user)
//   - PUT  /me/role         (switch the role selector)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/http/middleware"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required" example:"kitchen42"`
	Email    string `json:"email"    binding:"required" example:"kitchen42@example.org"`
	Password string `json:"password" binding:"required" example:"s3cret!"`
}

// LoginRequest is the JSON payload for signing in.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"kitchen42"`
	Password string `json:"password" binding:"required" example:"s3cret!"`
}

// SwitchRoleRequest selects the surface the user is working in.
type SwitchRoleRequest struct {
	Role string `json:"role" binding:"required" enums:"provider,receiver,delivery_person" example:"provider"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"      example:"q4Jd0lqk3o8Zb3Yy9H2xS0dC4mTqk1vQH8eK2rXlN5E"`
	ExpiresAt time.Time    `json:"expires_at"`
}

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Create an account
// @Description Creates a user (role receiver) and returns a session token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RegisterRequest  true  "Account details"
// @Success     201  {object}  handlers.SessionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Username or email taken"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username, email and password are required")
		return
	}
	login, err := h.identity.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.LoggerFrom(c).Info().Str("user_id", login.User.ID).Msg("user registered")
	ok(c, http.StatusCreated, SessionResponse{User: login.User, Token: login.Token, ExpiresAt: login.ExpiresAt})
}

// Login godoc
// @ID          login
// @Summary     Sign in
// @Description Verifies credentials and returns a bearer token. Unknown users and wrong passwords get the same 401.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object}  handlers.SessionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password are required")
		return
	}
	login, err := h.identity.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.LoggerFrom(c).Info().Str("user_id", login.User.ID).Msg("user signed in")
	ok(c, http.StatusOK, SessionResponse{User: login.User, Token: login.Token, ExpiresAt: login.ExpiresAt})
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Tags        Auth
// @Security    BearerAuth
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid session"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.identity.Logout(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Auth
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid session"
// @Router      /me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, found := middleware.CurrentUser(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing session")
		return
	}
	ok(c, http.StatusOK, u)
}

// SwitchRole godoc
// @ID          switchRole
// @Summary     Switch role
// @Description Records which surface (provider, receiver, delivery_person) the user is working in.
// @Tags        Auth
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SwitchRoleRequest  true  "Role"
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown role"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid session"
// @Router      /me/role [put]
func (h *Handlers) SwitchRole(c *gin.Context) {
	var req SwitchRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role is required")
		return
	}
	u, err := h.identity.SwitchRole(c.Request.Context(), actor(c), req.Role)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
