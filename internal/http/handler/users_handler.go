package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/juanmaabanto/ms-identity/internal/service"
)

// UsersHandler serves the account registration API.
type UsersHandler struct {
	Users  *service.UserService
	Logger *zap.Logger
}

// NewUsersHandler creates the handler.
func NewUsersHandler(users *service.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{Users: users, Logger: logger}
}

type userResponse struct {
	ID        string    `json:"id"`
	UserName  string    `json:"userName"`
	Alias     string    `json:"alias"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Register creates a new account.
func (h *UsersHandler) Register(c *gin.Context) {
	var in service.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "the request body could not be parsed",
		})
		return
	}

	user, err := h.Users.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userResponse{
		ID:        user.ID,
		UserName:  user.UserName,
		Alias:     user.Alias,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	})
}
