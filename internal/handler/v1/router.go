package v1

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/config"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/service"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/session"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/metrics"
)

type Deps struct {
	Config    *config.Config
	Sessions  *session.Manager
	Tokens    *auth.TokenManager
	Intake    *service.IntakeService
	Dashboard *service.DashboardService
	Metrics   *metrics.Collector
	Log       *zap.Logger

	// ExtractionState reports the extraction circuit breaker for /health.
	ExtractionState func() string
}

func NewRouter(d Deps) *gin.Engine {
	h := &Handler{
		sessions:       d.Sessions,
		tokens:         d.Tokens,
		intake:         d.Intake,
		dashboard:      d.Dashboard,
		maxUploadBytes: d.Config.Server.MaxUploadBytes,
		log:            d.Log.Named("http"),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(d.Log.Named("http")))
	r.Use(Metrics(d.Metrics))
	r.Use(cors.New(corsConfig(d.Config.CORS)))

	r.GET("/health", h.health(d.ExtractionState))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api/v1")
	api.Use(RateLimit(d.Config.RateLimit))

	api.POST("/sessions", h.createSession)
	api.GET("/vocabulary", h.vocabulary)

	authed := api.Group("")
	authed.Use(SessionAuth(d.Tokens))

	authed.DELETE("/sessions/current", h.endSession)

	reg := authed.Group("/registration")
	reg.GET("", h.getRegistration)
	reg.PATCH("/fields", h.setField)
	reg.POST("/attributes", h.toggleAttribute)
	reg.POST("/prescription-image", h.ingestPrescriptionImage)
	reg.DELETE("/prescription-image", h.removePrescriptionImage)
	reg.POST("/submit", h.submitRegistration)

	dash := authed.Group("/dashboard")
	dash.GET("", h.getDashboard)
	dash.PUT("/section", h.setSection)
	dash.GET("/prescriptions", h.searchPrescriptions)
	dash.POST("/reminders", h.createReminder)
	dash.POST("/reminders/:id/toggle", h.toggleReminder)
	dash.POST("/uploads", h.uploadPrescriptions)
	dash.POST("/voice", h.voiceInput)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "route not found")
	})

	return r
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  cfg.AllowedMethods,
		AllowHeaders:  cfg.AllowedHeaders,
		ExposeHeaders: []string{headerRequestID, "Retry-After"},
		MaxAge:        cfg.MaxAge,
	}
	// cors.New panics when no origin is allowed.
	if len(cc.AllowOrigins) == 0 {
		cc.AllowOrigins = nil
		cc.AllowAllOrigins = true
	}
	return cc
}
