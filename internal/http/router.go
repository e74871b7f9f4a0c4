// README: HTTP router registration (gin) with CORS, access logging, recovery and bearer auth.
package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"reposition/internal/http/handlers"
	"reposition/internal/http/middleware"
	"reposition/internal/infra"
)

// Workflow is the subset of the workflow service exposed over HTTP.
type Workflow interface {
	handlers.Registry
	handlers.StreetTurns
	handlers.CodRequests
	handlers.Expirer
}

type RouterDeps struct {
	Workflow    Workflow
	Rules       handlers.RuleLister
	Verifier    infra.TokenVerifier
	Currency    string
	Environment string
	Log         zerolog.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.Logging(d.Log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.Use(middleware.Auth(d.Verifier))

	registry := handlers.NewRegistryHandler(d.Workflow, d.Log)
	api.GET("/suggestions", registry.Suggestions)
	api.POST("/containers", registry.RegisterContainer)
	api.POST("/bookings", registry.RegisterBooking)

	streetTurns := handlers.NewStreetTurnHandler(d.Workflow, d.Currency, d.Log)
	api.POST("/street-turns", streetTurns.Create)
	api.GET("/street-turns/:id", streetTurns.Get)
	api.POST("/street-turns/:id/decision", streetTurns.Decide)
	api.POST("/street-turns/:id/complete", streetTurns.Complete)

	cod := handlers.NewCodHandler(d.Workflow, d.Currency, d.Log)
	api.GET("/cod/quote", cod.Quote)
	api.POST("/cod", cod.Create)
	api.GET("/cod/:id", cod.Get)
	api.POST("/cod/:id/decision", cod.Decide)
	api.POST("/cod/:id/info", cod.SupplyInfo)
	api.POST("/cod/:id/payment", cod.ConfirmPayment)
	api.POST("/cod/:id/advance", cod.Advance)
	api.POST("/cod/:id/reverse", cod.Reverse)

	api.GET("/rules", handlers.NewRulesHandler(d.Rules, d.Log).List)
	api.POST("/admin/expire", handlers.NewAdminHandler(d.Workflow, d.Log).Expire)

	return r
}
