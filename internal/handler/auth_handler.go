package handler

import (
	"net/http"

	"github.com/bookrent/gateway/internal/dto"
	"github.com/bookrent/gateway/internal/logger"
	"github.com/bookrent/gateway/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler issues bearer tokens for the password grant.
type AuthHandler struct {
	auth service.AuthService
	log  *logger.Logger
}

// NewAuthHandler creates the token endpoint handler.
func NewAuthHandler(auth service.AuthService, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthHandler{auth: auth, log: log}
}

// Token handles POST /oauth/token. It accepts both the form-encoded
// password grant and a JSON body with the same field names.
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "username and password are required"})
		return
	}

	token, err := h.auth.IssueToken(req.Username, req.Password)
	if err != nil {
		h.log.Warn("token request rejected", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "invalid username or password"})
		return
	}

	c.JSON(http.StatusOK, dto.TokenResponse{AccessToken: token, TokenType: "Bearer"})
}
