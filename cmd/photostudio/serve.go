package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/digkill/photostudio/internal/api"
	"github.com/digkill/photostudio/internal/astria"
	"github.com/digkill/photostudio/internal/auth"
	"github.com/digkill/photostudio/internal/callback"
	"github.com/digkill/photostudio/internal/config"
	"github.com/digkill/photostudio/internal/database"
	"github.com/digkill/photostudio/internal/enhancer"
	"github.com/digkill/photostudio/internal/repository"
	"github.com/digkill/photostudio/internal/service"
	"github.com/digkill/photostudio/internal/storage"
	"github.com/digkill/photostudio/internal/telegram"
	"github.com/digkill/photostudio/pkg/logger"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the Telegram admin bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logr := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("database migrate: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	modelRepo := repository.NewTrainedModelRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	uploader, err := storage.NewUploader(cfg)
	if err != nil {
		return fmt.Errorf("storage uploader: %w", err)
	}
	verifier, err := auth.NewGoogleVerifier(ctx, cfg.GoogleClientID)
	if err != nil {
		return fmt.Errorf("google verifier: %w", err)
	}

	provider := astria.NewClient(cfg, logr)
	callbacks := callback.NewBuilder(cfg.PublicBaseURL, cfg.WebhookSecret)

	var enhance service.PromptEnhancer
	if cfg.OpenAIAPIKey != "" {
		enhance = enhancer.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.EnhanceTimeout)
	} else {
		logr.Info("prompt enhancement disabled, OPENAI_API_KEY not set")
	}

	var (
		botAPI   *tgbotapi.BotAPI
		notifier service.Notifier = service.NopNotifier{}
	)
	if cfg.TelegramEnabled() {
		botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		notifier = telegram.NewNotifier(botAPI, cfg.TelegramAdminID)
	}

	ledger := service.NewLedger(userRepo)
	settingsService := service.NewSettingsService(settingsRepo)
	userService := service.NewUserService(userRepo, ledger)
	generationService := service.NewGenerationService(cfg, logr, ledger, generationRepo, modelRepo, provider, enhance, callbacks)
	trainingService := service.NewTrainingService(logr, ledger, modelRepo, provider, callbacks)
	webhookService := service.NewWebhookService(logr, callbacks, generationRepo, modelRepo)
	paymentService := service.NewPaymentService(logr, paymentRepo, userRepo, settingsService, notifier)
	templateService := service.NewTemplateService(templateRepo)

	server := api.NewServer(cfg, logr, api.Deps{
		Users:       userService,
		Generations: generationService,
		Training:    trainingService,
		Webhooks:    webhookService,
		Payments:    paymentService,
		Settings:    settingsService,
		Templates:   templateService,
		Verifier:    verifier,
		Sessions:    auth.NewSessions(cfg.JWTSecret, cfg.JWTTTL),
		Uploader:    uploader,
	})

	if botAPI != nil {
		bot := telegram.NewBot(botAPI, logr, cfg.TelegramAdminID, paymentService, settingsService)
		go func() {
			if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("telegram bot stopped", "err", err)
			}
		}()
	}

	return server.Run(ctx)
}
