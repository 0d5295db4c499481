package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/leadbot/internal/models"
	"gorm.io/gorm"
)

// Poll and heartbeat intervals for the lead stream.
var (
	ssePollInterval      = 3 * time.Second
	sseHeartbeatInterval = 15 * time.Second
)

// leadEvent is sent for each newly captured lead.
type leadEvent struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	Project  string `json:"project"`
	Name     string `json:"name"`
	Total    int64  `json:"total"`
}

// handleSSE streams new leads as server-sent events.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// Only leads that arrive after the client connected are streamed.
		since := time.Now()
		seen := map[string]bool{}

		ctx := c.Request.Context()
		ticker := time.NewTicker(ssePollInterval)
		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var fresh []models.Lead
				db.Where("created_at >= ?", since).Order("created_at ASC").Find(&fresh)

				var total int64
				for _, l := range fresh {
					if seen[l.ID] {
						continue
					}
					seen[l.ID] = true
					if total == 0 {
						db.Model(&models.Lead{}).Count(&total)
					}
					writeSSE(c.Writer, "lead", leadEvent{
						ID:       l.ID,
						Platform: l.Platform,
						Project:  l.Project,
						Name:     l.Name,
						Total:    total,
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
