// cmd/web/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LuisEduardoPedra/gstrecon/internal/api"
	"github.com/LuisEduardoPedra/gstrecon/internal/api/handlers"
	"github.com/LuisEduardoPedra/gstrecon/internal/api/responses"
	"github.com/LuisEduardoPedra/gstrecon/internal/config"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/classifier"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/converter"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/notify"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/reconcile"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version é preenchida via -ldflags.
var version = "dev"

func main() {
	cfgFile := flag.String("config", "config.yaml", "arquivo de configuração")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erro ao carregar a configuração: %v\n", err)
		os.Exit(1)
	}
	logger, err := responses.InitLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erro ao iniciar o logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	rules, err := cfg.BankRules()
	if err != nil {
		logger.Fatal("Erro ao carregar as regras do extrato", zap.Error(err))
	}

	converterService := converter.NewService(logger)
	reconcileService := reconcile.NewService(logger)
	classifierService := classifier.NewService(logger, rules...)

	// Sem SMTP a rota de notificação responde 503.
	var notifyService notify.Service
	if sender, err := notify.NewSMTPSender(cfg.Email.SMTP, cfg.Email.Identity); err == nil {
		notifyService = notify.NewService(sender, cfg.Email.Identity, cfg.Email.Dispatch, logger)
	} else {
		logger.Warn("envio de e-mails desativado", zap.Error(err))
	}

	router := api.NewRouter(api.Options{
		Reconcile:      handlers.NewReconcileHandler(converterService, reconcileService, notifyService, cfg.Reconcile, logger),
		Bank:           handlers.NewBankHandler(converterService, classifierService, logger),
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("🚀 Servidor iniciado", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Falha ao iniciar o servidor", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Erro ao encerrar o servidor", zap.Error(err))
	}
	logger.Info("Servidor encerrado")
}
