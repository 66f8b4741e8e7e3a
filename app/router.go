// Package app wires every endpoint to its handler and owns the shared
// dependency container
package app

import (
	"fmt"
	"strings"
	"time"

	"bitwise74/verify-api/app/realtime"
	"bitwise74/verify-api/app/root"
	"bitwise74/verify-api/app/user"
	"bitwise74/verify-api/db"
	"bitwise74/verify-api/internal"
	"bitwise74/verify-api/internal/registry"
	"bitwise74/verify-api/internal/service"
	"bitwise74/verify-api/pkg/middleware"
	"bitwise74/verify-api/pkg/security"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

func NewRouter() (*gin.Engine, error) {
	makeLogger()

	d := &internal.Deps{}

	conn, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	d.DB = conn

	d.Argon = security.New()

	signer, err := security.NewTokenSigner(viper.GetString("verification.secret"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signer, %w", err)
	}

	d.Engine = service.NewTokenEngine(conn, signer, service.SMTPMailer{})
	d.Engine.Cooldown = time.Duration(viper.GetInt("verification.resend_cooldown_ms")) * time.Millisecond
	d.Engine.DailyLimit = viper.GetInt("verification.daily_limit")
	d.Engine.VerifyTTL = time.Duration(viper.GetInt("verification.token_ttl_min")) * time.Minute
	d.Engine.ResetTTL = time.Duration(viper.GetInt("verification.reset_ttl_min")) * time.Minute

	d.Registry = registry.New(&service.SessionStore{DB: conn}, registry.Options{
		IdleTimeout: time.Duration(viper.GetInt("realtime.idle_timeout_ms")) * time.Millisecond,
		GracePeriod: time.Duration(viper.GetInt("realtime.grace_period_ms")) * time.Millisecond,
	})

	d.Notifier = service.NewNotifier(d.Registry, service.NotifierOpts{
		Retries: viper.GetInt("realtime.notify_retries"),
		Delay:   time.Duration(viper.GetInt("realtime.notify_delay_ms")) * time.Millisecond,
	})

	service.TokenCleanup(time.Hour, conn)
	service.SessionCleanup(time.Minute, conn)
	service.AccountCleanup(time.Hour, conn)

	router := gin.New()

	origins := strings.Split(viper.GetString("host.cors"), ",")

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	rateLimit := viper.GetInt("security.rate_limit")

	jwt := middleware.NewJWTMiddleware(conn)
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
		CleanupInterval:   time.Second,
	})

	m := router.Group("/api", rateLimiter)
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)
	}

	u := m.Group("/users", middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/users 		-> Registers a new user and sends the first verification email
		u.POST("", func(c *gin.Context) { user.UserRegister(c, d) })

		// POST /api/users/login 	-> Logs in a user and sets the auth cookie
		u.POST("/login", func(c *gin.Context) { user.UserLogin(c, d) })

		// GET /api/users/verify	-> Consumes an emailed verification token
		u.GET("/verify", func(c *gin.Context) { user.UserVerify(c, d) })
		u.POST("/verify", func(c *gin.Context) { user.UserVerify(c, d) })

		// POST /api/users/resend	-> Re-issues a verification email
		u.POST("/resend", func(c *gin.Context) { user.UserResend(c, d) })

		// GET /api/users		-> Returns the caller's account info
		u.GET("", jwt, func(c *gin.Context) { user.UserFetch(c, d) })
	}

	rt := m.Group("/realtime")
	{
		// GET /api/realtime/verification?vid=	-> WebSocket channel waiting on a verification
		rt.GET("/verification", func(c *gin.Context) { realtime.Connect(c, d) })

		// POST /api/realtime/notify-verified	-> Internal trigger waking waiting connections
		rt.POST("/notify-verified", func(c *gin.Context) { realtime.NotifyVerified(c, d) })

		// GET /api/realtime/status?vid=	-> SSE fallback poller
		rt.GET("/status", func(c *gin.Context) { realtime.Status(c, d) })
	}

	return router, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}
