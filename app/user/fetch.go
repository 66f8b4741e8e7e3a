package user

import (
	"net/http"

	"bitwise74/verify-api/internal"
	"bitwise74/verify-api/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func UserFetch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var u model.User

	err := d.DB.
		Where("id = ?", userID).
		First(&u).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch user data", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userID":          u.ID,
		"email":           u.Email,
		"status":          u.Status,
		"verified":        u.Verified,
		"emailVerifiedAt": u.EmailVerifiedAt,
		"requestID":       requestID,
	})
}
