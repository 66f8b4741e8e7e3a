package user

import (
	"errors"
	"net/http"
	"strconv"

	"bitwise74/verify-api/internal"
	"bitwise74/verify-api/internal/model"
	"bitwise74/verify-api/internal/service"
	"bitwise74/verify-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type resendBody struct {
	Email string `json:"email"`
}

// UserResend re-issues a verification token for an unverified account.
// Cooldown and daily cap violations surface with retry hints; everything
// else about the account is deliberately not revealed
func UserResend(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data resendBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if err := validators.EmailValidator(data.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	var user model.User

	err := d.DB.Where("email = ?", data.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Don't leak whether the address is registered
			c.JSON(http.StatusOK, gin.H{
				"message":   "If this address is registered a new verification email is on its way",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up user for resend", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if user.Verified {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "This account is already verified",
			"requestID": requestID,
		})
		return
	}

	vid, err := d.Engine.Issue(&user, user.Email, model.PurposeEmailVerify)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRateLimited):
			c.Header("Retry-After", strconv.Itoa(viper.GetInt("verification.resend_cooldown_ms")/1000))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Please wait before requesting another email",
				"code":      service.CodeRateLimited,
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrDailyLimitExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Daily verification email limit reached. Try again tomorrow",
				"code":      service.CodeDailyLimitExceeded,
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrResendFailed):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":     "Failed to send verification email. Please try again later",
				"code":      service.CodeResendFailed,
				"requestID": requestID,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to issue verification token", zap.Error(err), zap.String("requestID", requestID))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vid":       vid,
		"requestID": requestID,
	})
}
