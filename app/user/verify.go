package user

import (
	"context"
	"errors"
	"net/http"

	"bitwise74/verify-api/internal"
	"bitwise74/verify-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// UserVerify is the endpoint behind the emailed verification link. The
// token is consumed here; the vid (if the email carried one) is handed to
// the notifier so the tab that requested the email finds out immediately
func UserVerify(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	token := c.Query("token")
	if token == "" {
		token = c.PostForm("token")
	}

	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No verification token provided",
			"requestID": requestID,
		})
		return
	}

	vid := c.Query("vid")
	if vid == "" {
		vid = c.PostForm("vid")
	}

	res, err := d.Engine.Verify(token, vid)
	if err != nil {
		status, code := verifyErrStatus(err)

		if status == http.StatusInternalServerError {
			zap.L().Error("Token verification failed", zap.Error(err), zap.String("requestID", requestID))

			c.JSON(status, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})
			return
		}

		c.JSON(status, gin.H{
			"error":     err.Error(),
			"code":      code,
			"requestID": requestID,
		})
		return
	}

	// Best effort token login: a failure here must never block the
	// verification result
	if authToken, err := MakeAuthToken(res.UserID); err == nil {
		sslEnabled := viper.GetBool("host.ssl.enabled")
		c.SetCookie("auth_token", authToken, 60*60*24*30, "/", "", sslEnabled, true)
		c.SetCookie("logged_in", "1", 60*60*24*30, "/", "", sslEnabled, false)
	} else {
		zap.L().Warn("Failed to mint auth token after verification", zap.Error(err), zap.String("requestID", requestID))
	}

	if vid != "" {
		// The transaction committed already; delivery happens strictly after
		go d.Notifier.NotifyVerified(context.Background(), vid, res.Email)
	}

	c.JSON(http.StatusOK, gin.H{
		"code":      res.Code,
		"email":     res.Email,
		"requestID": requestID,
	})
}

func verifyErrStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusBadRequest, service.CodeInvalidSignature
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusBadRequest, service.CodeExpired
	case errors.Is(err, service.ErrTokenNotFound):
		return http.StatusNotFound, service.CodeNotFound
	case errors.Is(err, service.ErrAlreadyUsed):
		return http.StatusBadRequest, service.CodeAlreadyUsed
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, service.CodeUserNotFound
	case errors.Is(err, service.ErrEmailMismatch):
		return http.StatusBadRequest, service.CodeEmailMismatch
	default:
		return http.StatusInternalServerError, ""
	}
}
