package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	migrateV4 "github.com/golang-migrate/migrate/v4"
	"gorm.io/gorm"

	"github.com/yourusername/chgk-bot/internal/bot"
	"github.com/yourusername/chgk-bot/internal/config"
	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/domain/repository"
	"github.com/yourusername/chgk-bot/internal/handler"
	"github.com/yourusername/chgk-bot/internal/middleware"
	pgRepo "github.com/yourusername/chgk-bot/internal/repository/postgres"
	redisRepo "github.com/yourusername/chgk-bot/internal/repository/redis"
	"github.com/yourusername/chgk-bot/internal/service/crawler"
	"github.com/yourusername/chgk-bot/internal/service/game"
	"github.com/yourusername/chgk-bot/internal/service/pool"
	"github.com/yourusername/chgk-bot/internal/service/report"
	ws "github.com/yourusername/chgk-bot/internal/websocket"
	"github.com/yourusername/chgk-bot/pkg/auth"
	"github.com/yourusername/chgk-bot/pkg/database"
)

// backgroundRunTimeout ограничивает фоновый запуск пополнения
const backgroundRunTimeout = 30 * time.Minute

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// storage - подключения к базе и кешу
type storage struct {
	db    *gorm.DB
	cache repository.CacheRepository
	close func()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	db, err := database.Open(cfg.Database.URL, cfg.LogLevel == "debug")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	st := &storage{db: db}
	closers := []func(){func() {
		if sqlDB, err := database.GetSQLDB(db); err == nil {
			sqlDB.Close()
		}
	}}

	if cfg.Redis.Enabled() {
		client, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cacheRepo, err := redisRepo.NewCacheRepo(client, cfg.Redis.KeyPrefix)
		if err != nil {
			client.Close()
			return nil, err
		}
		log.Println("Successfully connected to Redis")
		st.cache = cacheRepo
		closers = append(closers, func() { client.Close() })
	} else {
		log.Println("Redis не настроен, используется кеш в памяти")
		st.cache = redisRepo.NewMemoryCache()
	}

	st.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return st, nil
}

func newCoordinator(cfg *config.Config, st *storage, questions repository.QuestionRepository) *pool.Coordinator {
	source := crawler.NewGotQuestions(crawler.SourceConfig{
		BaseURL:      cfg.Parser.BaseURL,
		Timeout:      cfg.Parser.RequestTimeout(),
		MaxRetries:   cfg.Parser.MaxRetries,
		RetryBackoff: cfg.Parser.RetryBackoff(),
		UserAgent:    cfg.Parser.UserAgent,
	})
	c := crawler.NewCrawler(source, questions, pgRepo.NewCrawlRepo(st.db), cfg.Parser.BaseURL, cfg.Parser.CursorStart)

	return pool.NewCoordinator(c, st.cache, pool.Config{
		Options: crawler.Options{
			TargetPerLevel: cfg.Parser.TargetPerLevel,
			BatchSize:      cfg.Parser.BatchSize,
			MaxBatches:     cfg.Parser.MaxBatches,
		},
		Interval:   cfg.Parser.Interval(),
		RunTimeout: backgroundRunTimeout,
	})
}

// newReportManager собирает получателей отчетов. sender может быть nil.
func newReportManager(cfg *config.Config, sender report.MessageSender) *report.Manager {
	var notifiers []report.Notifier
	if sender != nil && cfg.Report.TelegramUserID != 0 {
		notifiers = append(notifiers, report.NewTelegram(sender, cfg.Report.TelegramUserID))
	}
	if cfg.Report.EmailEnabled() {
		email, err := report.NewEmail(cfg.Report.ResendAPIKey, cfg.Report.EmailFrom, cfg.Report.EmailTo)
		if err != nil {
			log.Printf("Отчеты по почте отключены: %v", err)
		} else {
			notifiers = append(notifiers, email)
		}
	}
	return report.NewManager(notifiers...)
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireBot(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	questionRepo := pgRepo.NewQuestionRepo(st.db)
	coordinator := newCoordinator(cfg, st, questionRepo)
	defer coordinator.Close()

	gameService := game.NewService(&game.Dependencies{
		QuestionRepo: questionRepo,
		SessionRepo:  pgRepo.NewChatSessionRepo(st.db),
		LogRepo:      pgRepo.NewGameSessionLogRepo(st.db),
		CacheRepo:    st.cache,
		Replenish:    coordinator,
		Config: &game.Config{
			NextDelay: cfg.Game.NextDelay(),
			Defaults: entity.SelectionFilter{
				MinLikes:       cfg.Game.MinLikes,
				MinTakePercent: cfg.Game.MinTakePercent,
			},
			AnalyticsWindow: game.DefaultAnalyticsWindow,
			PoolStatsTTL:    game.DefaultPoolStatsTTL,
		},
	})
	defer gameService.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}
	api.Debug = cfg.LogLevel == "debug"
	log.Printf("Авторизован как @%s", api.Self.UserName)

	tgBot := bot.New(api, gameService, coordinator, bot.Options{
		Username:    api.Self.UserName,
		AdminUserID: cfg.Bot.AdminUserID,
		BaseURL:     cfg.Parser.BaseURL,
	})
	defer tgBot.Close()
	if err := tgBot.SetupCommands(); err != nil {
		log.Printf("Не удалось зарегистрировать меню команд: %v", err)
	}

	hub := ws.NewHub()
	defer hub.Close()

	reports := newReportManager(cfg, api)

	// Кеш статистики сбрасывается до возобновления чатов
	coordinator.OnComplete(func(ctx context.Context, _ *entity.ReplenishResult) {
		gameService.InvalidatePoolStats(ctx)
	})
	coordinator.OnComplete(tgBot.OnReplenished)
	coordinator.OnComplete(hub.OnReplenished)
	if reports.HasNotifiers() {
		coordinator.OnComplete(reports.Listener(pool.ReasonManual, pool.ReasonCLI))
	}

	routerCfg := handler.RouterConfig{
		AllowedOrigins: cfg.Admin.AllowedOrigins,
		RateLimiter:    middleware.NewRateLimiter(st.cache),
	}
	if cfg.Bot.Mode == config.BotModeWebhook {
		routerCfg.Webhook = handler.NewWebhookHandler(tgBot, cfg.Webhook.SecretToken)
		routerCfg.WebhookPath = cfg.Webhook.Path
	}
	if cfg.Admin.Enabled() {
		jwtService, err := auth.NewJWTService(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL())
		if err != nil {
			return fmt.Errorf("init admin auth: %w", err)
		}
		routerCfg.Admin = handler.NewAdminHandler(gameService, coordinator, jwtService, cfg.Admin.PasswordHash)
		routerCfg.Auth = middleware.NewAuthMiddleware(jwtService)
		routerCfg.WS = handler.NewWSHandler(hub, gameService, cfg.Admin.AllowedOrigins)
		log.Println("Административный API включен")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if cfg.Bot.Mode == config.BotModeWebhook {
		if err := tgBot.SetWebhook(cfg.Webhook.URL(), cfg.Webhook.SecretToken); err != nil {
			return err
		}
		log.Printf("Webhook установлен: %s", cfg.Webhook.URL())
	} else {
		go func() {
			if err := tgBot.RunPolling(ctx); err != nil {
				log.Printf("Long polling остановлен с ошибкой: %v", err)
				cancel()
			}
		}()
	}

	coordinator.Trigger(pool.ReasonStartup)
	go coordinator.Run(ctx)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Printf("Failed to start server: %v", err)
		cancel()
	}
	log.Println("Shutting down...")

	if cfg.Bot.Mode == config.BotModeWebhook {
		if err := tgBot.DeleteWebhook(); err != nil {
			log.Printf("Не удалось снять webhook: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
	return nil
}

func runParse(cursor *int64, batchSize, maxBatches int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if batchSize > 0 {
		cfg.Parser.BatchSize = batchSize
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	coordinator := newCoordinator(cfg, st, pgRepo.NewQuestionRepo(st.db))
	defer coordinator.Close()

	result, err := coordinator.RunManual(ctx, pool.ReasonCLI, cursor, maxBatches)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, report.FormatReport(result, report.TitleCLI))

	var sender report.MessageSender
	if cfg.Bot.Token != "" && cfg.Report.TelegramUserID != 0 {
		api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
		if err != nil {
			log.Printf("Отчет в Telegram не отправлен: %v", err)
		} else {
			sender = api
		}
	}
	reports := newReportManager(cfg, sender)
	if !reports.HasNotifiers() {
		return nil
	}
	notifyCtx, notifyCancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer notifyCancel()
	if err := reports.Broadcast(notifyCtx, report.New(result, report.TitleCLI)); err != nil {
		log.Printf("Ошибка отправки отчета: %v", err)
	}
	return nil
}

func runMigrate(direction string, version int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Database.URL, false)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if sqlDB, err := database.GetSQLDB(db); err == nil {
			sqlDB.Close()
		}
	}()

	if db.Dialector.Name() != database.DialectPostgres {
		if direction != "up" {
			return fmt.Errorf("migrate %s is only available for postgres", direction)
		}
		return database.MigrateDB(db)
	}

	m, err := database.NewMigrator(db)
	if err != nil {
		return err
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		fmt.Printf("Forcing migration version to %d to clean dirty state...\n", version)
		err = m.Force(version)
	}
	if errors.Is(err, migrateV4.ErrNoChange) {
		fmt.Println("Изменений в миграциях не найдено, база данных уже актуальна.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrateV4.ErrNilVersion) {
		return err
	}
	fmt.Printf("Success! Версия схемы: %d (dirty: %t)\n", v, dirty)
	return nil
}
