package telephony

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/MateDort/switchboard/internal/switchboard"
	"github.com/gin-gonic/gin"
)

// Events are the hooks the provider webhooks drive. OnInbound must return
// ErrCapacity (wrapped) when no line is free, so the caller can be declined
// instead of queued.
type Events struct {
	OnInbound func(ctx context.Context, from string) (sessionID string, err error)
	OnEnded   func(ctx context.Context, sessionID string, failed bool, reason string) error
}

// RegisterWebhooks mounts the provider webhook endpoints on a route group.
// When token is non-empty, requests must carry it in X-Webhook-Token.
func RegisterWebhooks(rg *gin.RouterGroup, token string, ev Events) {
	if token != "" {
		rg.Use(func(c *gin.Context) {
			if c.GetHeader("X-Webhook-Token") != token {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bad webhook token"})
			}
		})
	}
	rg.POST("/inbound", handleInbound(ev))
	rg.POST("/ended", handleEnded(ev))
}

func handleInbound(ev Events) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			From string `json:"from" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sessionID, err := ev.OnInbound(c.Request.Context(), req.From)
		if errors.Is(err, switchboard.ErrCapacity) {
			// 503 tells the provider to decline the call.
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			log.Printf("telephony: inbound from %s: %v", req.From, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
	}
}

func handleEnded(ev Events) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SessionID string `json:"session_id" binding:"required"`
			Failed    bool   `json:"failed"`
			Reason    string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := ev.OnEnded(c.Request.Context(), req.SessionID, req.Failed, req.Reason); err != nil {
			log.Printf("telephony: ended %s: %v", req.SessionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
