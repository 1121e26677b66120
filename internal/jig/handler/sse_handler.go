package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/porast/jigman/internal/jig/sse"
)

// SSEHandler streams inventory change events to connected clients.
type SSEHandler struct {
	hub *sse.Hub
}

// NewSSEHandler creates a new SSE handler.
func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// Stream GET /events?token=xxx
func (h *SSEHandler) Stream(c *gin.Context) {
	username := c.GetString("username")
	clientID := fmt.Sprintf("%s_%d", username, time.Now().UnixNano())

	client := &sse.Client{
		ID:     clientID,
		UserID: username,
		Events: make(chan sse.Event, 64),
	}

	h.hub.Register(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteString("event: connected\ndata: {\"client_id\":\"" + clientID + "\"}\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			h.hub.Unregister(clientID)
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event.EventType, event.Data)
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": heartbeat\n\n")
			c.Writer.Flush()
		}
	}
}
