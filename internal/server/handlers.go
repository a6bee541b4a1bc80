package server

import (
	"net/http"

	"hiive-relay/internal/event"

	"github.com/gin-gonic/gin"
)

// ingestRequest is the POST /ingest/:capability payload.
type ingestRequest struct {
	Data      map[string]any `json:"data,omitempty"`
	PageTitle string         `json:"page_title,omitempty"`
}

func (s *Server) registerRoutes(r gin.IRoutes) {
	r.POST("/ingest/:capability", s.handleIngest)
	r.GET("/status", s.handleStatus)
}

// handleIngest translates a host callback into an event. The push is
// fire-and-forget: the producer gets 202 as soon as the event is buffered;
// delivery happens at end-of-request or from the retry queue.
func (s *Server) handleIngest(c *gin.Context) {
	capability := c.Param("capability")

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	src := s.contextSource(c, req.PageTitle)
	e, ok := s.registry.Produce(capability, src, req.Data)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown capability"})
		return
	}

	requestManager(c).Push(e)
	c.JSON(http.StatusAccepted, gin.H{"event_id": e.ID})
}

// handleStatus exposes the queue depth for monitoring.
func (s *Server) handleStatus(c *gin.Context) {
	depth, err := s.queue.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued_events": depth})
}

// contextSource snapshots the inbound request for event construction.
func (s *Server) contextSource(c *gin.Context, pageTitle string) event.ContextSource {
	v, _ := c.Get(userCtxKey)
	usr, _ := v.(event.UserContext)
	return event.StaticSource{
		Req: event.RequestContext{
			URL:       c.Request.URL.String(),
			PageTitle: pageTitle,
			UserAgent: c.Request.UserAgent(),
			IP:        c.ClientIP(),
		},
		Usr: usr,
		Env: s.env,
	}
}
