package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ecodvor/scrap-backend/internal/config"
	"github.com/ecodvor/scrap-backend/internal/db"
	"github.com/ecodvor/scrap-backend/internal/feed"
	httpHandlers "github.com/ecodvor/scrap-backend/internal/http/handlers"
	httpRouter "github.com/ecodvor/scrap-backend/internal/http/router"
	"github.com/ecodvor/scrap-backend/internal/logger"
	"github.com/ecodvor/scrap-backend/internal/repository"
	"github.com/ecodvor/scrap-backend/internal/service"
	"github.com/ecodvor/scrap-backend/internal/storage"
)

// urgencyRefreshPeriod — шаг пересчёта срочности открытых заявок.
// Окно срочности меняется часами, минутного шага более чем достаточно.
const urgencyRefreshPeriod = time.Minute

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	photoStorage, err := storage.NewPhotoStorage(cfg.PhotoStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	requestRepo := repository.NewRequestRepository(dbConn)
	ledgerRepo := repository.NewLedgerRepository(dbConn)
	priceRepo := repository.NewPriceRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	settlementService := service.NewSettlementService(ledgerRepo)
	requestService := service.NewRequestService(requestRepo, nil, settlementService)

	// Лента: хаб строит снимок из сервиса заявок, сервис публикует в хаб.
	hub := feed.NewHub(requestService.Snapshot)
	requestService.SetFeed(hub)

	// Фоновые циклы: пересчёт срочности и сверка зависших транзакций.
	requestService.StartUrgencyRefresher(ctx, urgencyRefreshPeriod)
	settlementService.StartReconciler(ctx, cfg.ReconcilePeriod)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	requestHandler := httpHandlers.NewRequestHandler(requestService)
	walletHandler := httpHandlers.NewWalletHandler(settlementService)
	statsHandler := httpHandlers.NewStatsHandler(requestService)
	catalogHandler := httpHandlers.NewCatalogHandler(priceRepo)
	photoHandler := httpHandlers.NewPhotoHandler(requestService, photoStorage)
	adminHandler := httpHandlers.NewAdminHandler(settlementService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, requestHandler, walletHandler,
		statsHandler, catalogHandler, photoHandler, adminHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
