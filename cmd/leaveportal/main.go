// Package main запускает HTTP-сервер портала заявок на отпуск.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/leaveportal/internal/config"
	"github.com/mmeshcher/leaveportal/internal/handler"
	"github.com/mmeshcher/leaveportal/internal/middleware"
	"github.com/mmeshcher/leaveportal/internal/odoo"
	"github.com/mmeshcher/leaveportal/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		sugar.Fatalw("time zone error", "zone", cfg.TimeZone, "error", err.Error())
	}

	if cfg.BackendAddress == "" {
		sugar.Warn("backend address is not set, every backend call will fail")
	}
	backend := odoo.NewClient(cfg.BackendAddress,
		odoo.WithTimeout(cfg.BackendTimeout),
		odoo.WithRetries(cfg.BackendRetries),
		odoo.WithLogger(logger),
	)

	svc := service.NewService(backend,
		service.WithLogger(logger),
		service.WithLocation(loc),
		service.WithSessionTTL(cfg.SessionTTL),
		// Все попытки чтения плюс паузы между повторами.
		service.WithFetchTimeout(time.Duration(cfg.BackendRetries+1)*cfg.BackendTimeout+time.Duration(cfg.BackendRetries)*time.Second),
	)
	defer svc.Close()

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		sugar.Warn("session secret is not set, using a random one")
	}
	formSession := middleware.NewFormSession(secret, cfg.SessionTTL)
	h := handler.NewHandler(svc, logger, formSession, cfg.OverlapWait)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Закрытие неактивных сессий формы
	g.Go(func() error {
		svc.StartJanitor(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting leave portal server", "addr", cfg.RunAddress, "backend", cfg.BackendAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func randomSecret() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
