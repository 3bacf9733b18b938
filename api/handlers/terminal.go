// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/L1NNA/jupyter-http-terminal/internal/logger"
	"github.com/L1NNA/jupyter-http-terminal/internal/model"
	"github.com/L1NNA/jupyter-http-terminal/internal/session"
)

// TerminalHandler serves the four operations of the polling protocol.
type TerminalHandler struct {
	manager *session.Manager
	log     *logger.Logger
}

// NewTerminalHandler creates a TerminalHandler.
func NewTerminalHandler(manager *session.Manager, log *logger.Logger) *TerminalHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &TerminalHandler{manager: manager, log: log}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// sessionID extracts the mandatory session_id query parameter.
func sessionID(c *gin.Context) (string, bool) {
	id := c.Query("session_id")
	if id == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing session_id")
		return "", false
	}
	return id, true
}

// Create handles GET /terminal - establishes the session for the given
// identifier, idempotently.
func (h *TerminalHandler) Create(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.manager.Ensure(c.Request.Context(), id); err != nil {
		h.log.WithSession(id).Error("failed to create session: " + err.Error())
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}

// Poll handles GET /terminal/output - drains pending output and reports
// whether the process has exited.
func (h *TerminalHandler) Poll(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	chunk, err := h.manager.Poll(id)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusBadRequest, "SESSION_NOT_FOUND", "Invalid or missing session_id")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to poll output: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, chunk)
}

// Input handles POST /terminal/input - forwards one input fragment to the PTY.
func (h *TerminalHandler) Input(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	if err := h.manager.Write(id, []byte(req.Input)); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusBadRequest, "SESSION_NOT_FOUND", "Invalid or missing session_id")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to write input: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}

// Resize handles POST /terminal/resize - applies the client's viewport size
// to the PTY.
func (h *TerminalHandler) Resize(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}
	if req.Rows <= 0 {
		req.Rows = 24
	}
	if req.Cols <= 0 {
		req.Cols = 80
	}

	if err := h.manager.Resize(id, uint16(req.Rows), uint16(req.Cols)); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusBadRequest, "SESSION_NOT_FOUND", "Invalid or missing session_id")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resize: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}

// RegisterRoutes registers the terminal routes on a Gin router.
func (h *TerminalHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/terminal", h.Create)
	r.GET("/terminal/output", h.Poll)
	r.POST("/terminal/input", h.Input)
	r.POST("/terminal/resize", h.Resize)
}
