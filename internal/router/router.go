package router

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/support-service/api"
	"github.com/psds-microservice/support-service/internal/auth"
	"github.com/psds-microservice/support-service/internal/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Options struct {
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	// Ready is probed by the readiness endpoint; nil means always ready.
	Ready gin.HandlerFunc
}

func New(tickets *handler.TicketHandler, admin *handler.AdminHandler, opts Options) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())
	r.GET(paths.PathHealth, handler.Health)
	if opts.Ready != nil {
		r.GET(paths.PathReady, opts.Ready)
	} else {
		r.GET(paths.PathReady, handler.Ready(nil))
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/openapi.json"))(c)
	})

	v1 := r.Group("/api/v1", auth.Caller(opts.JWTSecret), auth.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	{
		v1.POST("/sessions", tickets.StartSession)

		v1.POST("/tickets", tickets.Create)
		v1.GET("/tickets", tickets.ListMine)
		v1.GET("/tickets/:id", tickets.Get)
		v1.POST("/tickets/:id/messages", tickets.AddMessage)
		v1.POST("/tickets/:id/respond", tickets.Respond)
		v1.PUT("/tickets/:id/status", tickets.ChangeStatus)
		v1.PUT("/tickets/:id/priority", tickets.ChangePriority)
		v1.PUT("/tickets/:id/assignee", tickets.Assign)

		v1.GET("/queue/pending", tickets.Pending)
		v1.GET("/queue/closed", tickets.Closed)
		v1.GET("/stats", tickets.Stats)
	}
	adm := v1.Group("/admin")
	{
		adm.GET("/users", admin.ListUsers)
		adm.GET("/roles", admin.RoleCounts)
		adm.PUT("/users/:id/role", admin.SetRole)
		adm.POST("/users/:id/deactivate", admin.Deactivate)
		adm.POST("/users/:id/reactivate", admin.Reactivate)
		adm.GET("/export", admin.Export)
	}

	return r
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"caller", auth.CallerID(c),
		)
	}
}
