package api

import (
	"net/http"

	"github.com/LuisEduardoPedra/gstrecon/internal/api/handlers"
	"github.com/LuisEduardoPedra/gstrecon/internal/api/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options configura as rotas e os middlewares do servidor.
type Options struct {
	Reconcile      *handlers.ReconcileHandler
	Bank           *handlers.BankHandler
	Logger         *zap.Logger
	AllowedOrigins []string
	MaxUploadBytes int64
	Version        string
}

// NewRouter monta o engine do gin com todas as rotas da API.
func NewRouter(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(middleware.CORS(opts.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "version": opts.Version})
	})

	apiV1 := router.Group("/api/v1")
	if opts.MaxUploadBytes > 0 {
		apiV1.Use(middleware.UploadLimit(opts.MaxUploadBytes))
	}
	{
		apiV1.POST("/reconcile", opts.Reconcile.HandleReconcile)
		apiV1.POST("/reconcile/mismatches", opts.Reconcile.HandleMismatches)
		apiV1.POST("/notify", opts.Reconcile.HandleNotify)
		apiV1.POST("/bank/classify", opts.Bank.HandleClassify)
	}
	return router
}
