package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	taskdomain "github.com/resumehub/billing/internal/taskbill/domain"
)

type taskRequest struct {
	Capability string                 `json:"capability" binding:"required"`
	Input      map[string]interface{} `json:"input"`
}

// handleTaskRun proxies the compute-service stream to the caller as
// server-sent events, then bills on terminal success.
func (s *Server) handleTaskRun(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, _ := c.Writer.(http.Flusher)
	wroteHeader := false
	emit := func(record taskdomain.Record) error {
		line, err := taskdomain.EncodeRecord(record)
		if err != nil {
			return err
		}
		wroteHeader = true
		if _, err := c.Writer.Write(append(line, '\n', '\n')); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	err := s.tasks.Run(c.Request.Context(), taskdomain.RunRequest{
		UserID:     userID,
		Capability: req.Capability,
		Input:      req.Input,
	}, emit)
	if err != nil && !wroteHeader {
		respondError(c, err)
	}
}

func (s *Server) handleTaskCancel(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	if !s.tasks.Cancel(userID) {
		respondError(c, taskdomain.ErrNoTask)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}
