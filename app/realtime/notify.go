package realtime

import (
	"net/http"

	"bitwise74/verify-api/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type notifyBody struct {
	VID   string `json:"vid" binding:"required"`
	Email string `json:"email" binding:"required"`
}

// NotifyVerified is the internal trigger used to wake connections waiting
// on a vid. It reports the single immediate delivery attempt; the caller
// side retry loop (the notifier) is for in-process callers, a server
// POSTing here is expected to bring its own retry policy
func NotifyVerified(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data notifyBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "vid and email fields are required",
			"requestID": requestID,
		})
		return
	}

	delivered := d.Registry.Deliver(data.VID, data.Email)
	if delivered == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success":   false,
			"code":      "NO_CONNECTION",
			"requestID": requestID,
		})
		return
	}

	zap.L().Debug("Delivered verification over control endpoint",
		zap.String("vid", data.VID),
		zap.Int("deliveredCount", delivered))

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"code":           "NOTIFIED",
		"deliveredCount": delivered,
		"requestID":      requestID,
	})
}
