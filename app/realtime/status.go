package realtime

import (
	"errors"
	"net/http"
	"time"

	"bitwise74/verify-api/internal"
	"bitwise74/verify-api/internal/model"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	pollInterval = 2 * time.Second
	pollWindow   = 5 * time.Minute
)

// Status is the fallback path for clients whose WebSocket never opened. It
// streams SSE events backed by repeated reads of the session's verified_at
// until a terminal state or the poll window runs out. Both paths observe
// the same authoritative column, so they can't disagree
func Status(c *gin.Context, d *internal.Deps) {
	vid := c.Query("vid")
	if vid == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No vid provided",
		})
		return
	}

	c.Writer.Header().Set("Content-Type", sse.ContentType)
	c.Writer.Header().Set("Cache-Control", "no-cache")

	state, email := readSession(d.DB, vid)
	if state == "error" {
		c.Render(-1, sse.Event{Event: "error", Data: gin.H{"vid": vid}})
		c.Writer.Flush()
		return
	}

	if state == "verified" {
		c.Render(-1, sse.Event{Event: "verified", Data: gin.H{"vid": vid, "email": email}})
		c.Writer.Flush()
		return
	}

	c.Render(-1, sse.Event{Event: "connected", Data: gin.H{"vid": vid}})
	c.Writer.Flush()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	deadline := time.After(pollWindow)

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-deadline:
			c.Render(-1, sse.Event{Event: "timeout", Data: gin.H{"vid": vid}})
			c.Writer.Flush()
			return
		case <-ticker.C:
			state, email := readSession(d.DB, vid)

			switch state {
			case "verified":
				c.Render(-1, sse.Event{Event: "verified", Data: gin.H{"vid": vid, "email": email}})
				c.Writer.Flush()
				return
			case "error":
				c.Render(-1, sse.Event{Event: "error", Data: gin.H{"vid": vid}})
				c.Writer.Flush()
				return
			}
		}
	}
}

// readSession reports the session's current state: waiting, verified or
// error. A session that disappeared or expired mid-poll is an error; the
// client restarts the flow (or already heard VERIFIED over the socket)
func readSession(db *gorm.DB, vid string) (state, email string) {
	var sess model.VerificationSession

	err := db.Where("vid = ?", vid).First(&sess).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Error("Failed to poll verification session", zap.Error(err))
		}

		return "error", ""
	}

	if sess.VerifiedAt != nil {
		var user model.User
		if err := db.Where("id = ?", sess.UserID).First(&user).Error; err == nil {
			email = user.Email
		}

		return "verified", email
	}

	if sess.Expired() {
		return "error", ""
	}

	return "waiting", ""
}
