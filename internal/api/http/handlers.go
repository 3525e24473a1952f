package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aiterminal/backend/internal/domain/exec"
	"github.com/aiterminal/backend/internal/domain/pty"
	"github.com/aiterminal/backend/internal/domain/session"
	"github.com/aiterminal/backend/internal/infrastructure/logging"
	"github.com/aiterminal/backend/internal/infrastructure/monitoring"
	"github.com/aiterminal/backend/internal/service"
	"github.com/aiterminal/backend/internal/shared/id"
	"github.com/aiterminal/backend/internal/shared/types"
)

// Handlers bundles the REST endpoints.
type Handlers struct {
	engine    *exec.Engine
	ptyMgr    *pty.Manager
	sessions  *session.Registry
	providers *service.Registry
	log       *logging.Logger
	metrics   *monitoring.Metrics
	startTime time.Time
}

// NewHandlers creates the REST handler set.
func NewHandlers(
	engine *exec.Engine,
	ptyMgr *pty.Manager,
	sessions *session.Registry,
	providers *service.Registry,
	log *logging.Logger,
	metrics *monitoring.Metrics,
) *Handlers {
	return &Handlers{
		engine:    engine,
		ptyMgr:    ptyMgr,
		sessions:  sessions,
		providers: providers,
		log:       log,
		metrics:   metrics,
		startTime: time.Now(),
	}
}

// Root identifies the service.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "aiterminal-backend",
		"status":  "running",
	})
}

// Health reports liveness plus a few gauges for the client's status bar.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"uptime_sec":   int(time.Since(h.startTime).Seconds()),
		"pty_sessions": h.ptyMgr.Count(),
		"providers":    h.providers.Stats(),
	})
}

type executeRequest struct {
	Command   string  `json:"command" binding:"required"`
	SessionID string  `json:"session_id" binding:"required"`
	Password  *string `json:"password"`
}

// Execute dispatches a command for a session. The response acknowledges
// dispatch; output streams over the WebSocket.
func (h *Handlers) Execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.Execute(req.Command, req.SessionID, req.Password)
	if err != nil {
		h.log.Warn("execute failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		if h.metrics != nil {
			h.metrics.RecordCommand("error")
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": string(result)})
}

type executeSudoRequest struct {
	Command   string `json:"command" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// ExecuteSudo dispatches a sudo command with the password fed over stdin.
func (h *Handlers) ExecuteSudo(c *gin.Context) {
	var req executeSudoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.ExecuteSudo(req.Command, req.SessionID, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordCommand("error")
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": string(result)})
}

// GetSession returns the registry's view of one session.
func (h *Handlers) GetSession(c *gin.Context) {
	s := h.sessions.Snapshot(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"current_dir":   s.CurrentDir,
		"pid":           s.PID,
		"remote_active": s.RemoteActive,
		"remote_dir":    s.RemoteDir,
	})
}

type ptyCreateRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Cols      uint16 `json:"cols"`
	Rows      uint16 `json:"rows"`
}

// PTYCreate starts an interactive shell under a new PTY.
func (h *Handlers) PTYCreate(c *gin.Context) {
	var req ptyCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Cols == 0 {
		req.Cols = 80
	}
	if req.Rows == 0 {
		req.Rows = 24
	}

	if err := h.ptyMgr.Create(req.SessionID, req.Cols, req.Rows); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": req.SessionID})
}

type ptyWriteRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Data      string `json:"data" binding:"required"`
}

// PTYWrite sends keystrokes to a PTY session.
func (h *Handlers) PTYWrite(c *gin.Context) {
	var req ptyWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ptyMgr.Write(req.SessionID, req.Data); err != nil {
		c.JSON(ptyErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ptyErrorStatus separates unknown sessions from I/O failures on live ones.
func ptyErrorStatus(err error) int {
	if errors.Is(err, pty.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type ptyResizeRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Cols      uint16 `json:"cols" binding:"required"`
	Rows      uint16 `json:"rows" binding:"required"`
}

// PTYResize updates a PTY session's window size.
func (h *Handlers) PTYResize(c *gin.Context) {
	var req ptyResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ptyMgr.Resize(req.SessionID, req.Cols, req.Rows); err != nil {
		c.JSON(ptyErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type ptyCloseRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// PTYClose terminates a PTY session. Closing an already-gone session
// succeeds: the client may race the shell's own exit.
func (h *Handlers) PTYClose(c *gin.Context) {
	var req ptyCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.ptyMgr.Close(req.SessionID)
	c.Status(http.StatusNoContent)
}

// ListServices returns registered provider definitions.
func (h *Handlers) ListServices(c *gin.Context) {
	var category *types.Category
	if q := c.Query("category"); q != "" {
		cat := types.Category(q)
		category = &cat
	}
	c.JSON(http.StatusOK, gin.H{"services": h.providers.List(category)})
}

type discoverRequest struct {
	Intent string `json:"intent" binding:"required"`
	Limit  int    `json:"limit"`
}

// DiscoverServices ranks providers against a free-text intent.
func (h *Handlers) DiscoverServices(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}
	c.JSON(http.StatusOK, gin.H{"services": h.providers.Discover(req.Intent, req.Limit)})
}

type serviceExecuteRequest struct {
	ToolID    string                 `json:"tool_id" binding:"required"`
	Params    map[string]interface{} `json:"params"`
	SessionID *string                `json:"session_id"`
}

// ExecuteService runs a provider tool.
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req serviceExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reqID := id.NewRequestID().String()
	tctx := &types.Context{
		SessionID: req.SessionID,
		RequestID: &reqID,
	}

	result, err := h.providers.Execute(c.Request.Context(), req.ToolID, req.Params, tctx)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
