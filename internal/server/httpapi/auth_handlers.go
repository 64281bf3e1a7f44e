package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	identityservice "task-tracker/backend/internal/identity/service"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type refreshResponse struct {
	Message string                     `json:"message"`
	Tokens  *identityservice.TokenPair `json:"tokens"`
}

// register handles POST /auth/register.
func (h *handlers) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userResponse{ID: user.ID, Username: user.Username})
}

// login handles POST /auth/login. The pair is returned in the body and set as cookies.
func (h *handlers) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	pair, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.cookies.setPair(c, pair)
	c.JSON(http.StatusOK, pair)
}

// logout handles POST /auth/logout.
func (h *handlers) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), credentialsFromRequest(c)); err != nil {
		writeError(c, err)
		return
	}
	h.cookies.clear(c)
	c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// refresh handles POST /auth/refresh. Only the refresh token is read; a new access cookie is set.
func (h *handlers) refresh(c *gin.Context) {
	pair, err := h.auth.Refresh(c.Request.Context(), credentialsFromRequest(c).RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	h.cookies.set(c, AccessCookie, pair.AccessToken, h.cookies.accessTTL)
	c.JSON(http.StatusOK, refreshResponse{Message: "Refreshed successfully", Tokens: pair})
}

// me handles GET /auth/me.
func (h *handlers) me(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, userResponse{ID: user.ID, Username: user.Username})
}
