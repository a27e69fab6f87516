package http

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/http/handlers"
	"github.com/geocoder89/propertypro/internal/http/middlewares"
	"github.com/geocoder89/propertypro/internal/observability"
)

const serviceName = "propertypro"

type Deps struct {
	Log  *slog.Logger
	Prom *observability.Prom

	Accounts handlers.Account
	Gate     *middlewares.AuthGate
	Limiter  middlewares.Limiter
	Checks   map[string]handlers.Check

	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	Production     bool
}

func NewRouter(d Deps) *gin.Engine {
	if d.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(otelgin.Middleware(serviceName))
	r.Use(d.Prom.GinHandleMiddleware())
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Production))
	r.Use(middlewares.CORSMiddleware(d.AllowedOrigins))

	// health & metrics
	hh := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", hh.Healthz)
	r.GET("/readyz", hh.Readyz)
	r.GET("/metrics", gin.WrapH(d.Prom.Handler()))

	r.NoRoute(func(c *gin.Context) {
		handlers.RespondNotFound(c, fmt.Sprintf("Can't find %s on this server!", c.Request.URL.Path))
	})

	ah := handlers.NewAuthHandler(d.Accounts, d.Production, d.RequestTimeout)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.RateLimit(d.Limiter, middlewares.KeyByIP, d.Prom))
	v1.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	v1.Use(middlewares.RequireJSON())

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", ah.Register)
		authGroup.GET("/email_confirmation/:token", ah.ConfirmEmail)
		authGroup.POST("/email_confirmation/:token", ah.ConfirmEmail)
		authGroup.POST("/login", ah.Login)
		authGroup.POST("/forgotPassword", ah.ForgotPassword)
		authGroup.POST("/password_reset/:token", ah.ResetPassword)
		authGroup.PATCH("/password_reset/:token", ah.ResetPassword)
		authGroup.PATCH("/updatePassword", d.Gate.RequireAuth(), ah.UpdatePassword)
	}

	users := v1.Group("/users", d.Gate.RequireAuth())
	{
		users.GET("/profile", ah.Profile)
		users.DELETE("/profile", ah.DeactivateProfile)
	}

	admin := v1.Group("/admin", d.Gate.RequireAuth(), middlewares.Authorize(user.RoleAdmin))
	{
		admin.GET("/users/:id", ah.AdminGetUser)
	}

	return r
}
