package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/leadbot/internal/messaging"
	"gorm.io/gorm"
)

// registerRoutes sets up the health and API routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, platform string) {
	router.GET("/healthz", handleHealth(db, platform))

	api := router.Group("/api")
	api.Use(requireDB(db))
	api.GET("/stats", handleStats(db))
	api.GET("/leads", handleLeads(db))
	api.GET("/events", handleSSE(db))
}

func handleHealth(db *gorm.DB, platform string) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok", "platform": platform, "database": "disabled"}
		if db != nil {
			status["database"] = "ok"
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
				c.JSON(http.StatusServiceUnavailable, status)
				return
			}
		}
		c.JSON(http.StatusOK, status)
	}
}

// requireDB answers 503 when no database is configured.
func requireDB(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
			return
		}
		c.Next()
	}
}

func handleStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := LeadStats(db, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// leadJSON is the API shape of a lead.
type leadJSON struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Language  string    `json:"language"`
	Project   string    `json:"project"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"delivery_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func handleLeads(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := messaging.ListOpts{Platform: c.Query("platform")}
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
				return
			}
			opts.Limit = n
		}
		opts.Undelivered = c.Query("undelivered") == "true"

		rows, err := messaging.ListLeads(db, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]leadJSON, len(rows))
		for i, r := range rows {
			out[i] = leadJSON{
				ID:        r.ID,
				Platform:  r.Platform,
				ChatID:    r.ChatID,
				UserID:    r.UserID,
				Username:  r.UserHandle,
				Language:  r.Language,
				Project:   r.Project,
				Name:      r.Name,
				Phone:     r.Phone,
				Email:     r.Email,
				Delivered: r.Delivered,
				Error:     r.DeliveryErr,
				CreatedAt: r.CreatedAt,
			}
		}
		c.JSON(http.StatusOK, gin.H{"leads": out, "count": len(out)})
	}
}
