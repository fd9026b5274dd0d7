// Package handlers provides the HTTP API handlers for the webchat session service.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/webchat/internal/token"
	"github.com/memohai/webchat/internal/webchat"
)

// WebchatHandler serves the webchat bootstrap and token refresh endpoints.
type WebchatHandler struct {
	sessions *webchat.Service
	logger   *slog.Logger
}

// RefreshRequest is the body for the refresh endpoint.
type RefreshRequest struct {
	Token string `json:"token"`
}

// InitResponse packages a fresh session for the chat widget. Expiration is
// epoch milliseconds.
type InitResponse struct {
	Token           string `json:"token"`
	ConversationSID string `json:"conversationSid"`
	Expiration      int64  `json:"expiration"`
}

// RefreshResponse carries a replacement credential. Expiration is epoch
// milliseconds.
type RefreshResponse struct {
	Token      string `json:"token"`
	Expiration int64  `json:"expiration"`
}

// NewWebchatHandler creates the webchat session handler.
func NewWebchatHandler(log *slog.Logger, sessions *webchat.Service) *WebchatHandler {
	return &WebchatHandler{
		sessions: sessions,
		logger:   log.With(slog.String("handler", "webchat")),
	}
}

// Register mounts the bootstrap and refresh endpoints on the Echo instance.
// OPTIONS preflights are answered by the CORS middleware.
func (h *WebchatHandler) Register(e *echo.Echo) {
	e.POST("/initWebchat", h.Init)
	e.GET("/initWebchat", h.Init)
	e.POST("/refreshToken", h.Refresh)
	e.GET("/refreshToken", h.Refresh)
}

// Init godoc
// @Summary Initiate a webchat session
// @Description Orchestrate a conversation for the intake form and issue an access credential
// @Tags webchat
// @Param payload body webchat.Form true "Intake form"
// @Success 200 {object} InitResponse
// @Failure 400 {object} InitErrorResponse
// @Failure 500 {object} InitErrorResponse
// @Router /initWebchat [post].
func (h *WebchatHandler) Init(c echo.Context) error {
	var form webchat.Form
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	}

	result, err := h.sessions.Bootstrap(c.Request().Context(), form)
	if err != nil {
		h.logger.Error("webchat bootstrap failed", slog.Any("error", err))
		status := http.StatusInternalServerError
		if errors.Is(err, webchat.ErrEmailRequired) {
			status = http.StatusBadRequest
		}
		return c.JSON(status, InitErrorResponse{
			ErrorMessage: fmt.Sprintf("Couldn't initiate WebChat: %v", err),
		})
	}

	return c.JSON(http.StatusOK, InitResponse{
		Token:           result.Token,
		ConversationSID: result.ConversationSID,
		Expiration:      result.ExpiresAt.UnixMilli(),
	})
}

// Refresh godoc
// @Summary Refresh a webchat credential
// @Description Verify the presented credential and mint a replacement
// @Tags webchat
// @Param payload body RefreshRequest true "Refresh request"
// @Success 200 {object} RefreshResponse
// @Failure 403 "invalid credential"
// @Failure 500 {object} ErrorResponse
// @Router /refreshToken [post].
func (h *WebchatHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	}

	result, err := h.sessions.Refresh(c.Request().Context(), req.Token)
	if err != nil {
		if errors.Is(err, token.ErrInvalidCredential) {
			// No body detail: verification internals stay server-side.
			return c.NoContent(http.StatusForbidden)
		}
		h.logger.Error("token refresh failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, RefreshResponse{
		Token:      result.Token,
		Expiration: result.ExpiresAt.UnixMilli(),
	})
}
