package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/thegiantbeast/momentus-shop-api/adapters/gojob"
	"github.com/thegiantbeast/momentus-shop-api/command"
	"github.com/thegiantbeast/momentus-shop-api/core"
	"github.com/thegiantbeast/momentus-shop-api/httpapi"
	"github.com/thegiantbeast/momentus-shop-api/mail"
	"github.com/thegiantbeast/momentus-shop-api/reminder"
	"github.com/thegiantbeast/momentus-shop-api/shopify"
	"github.com/thegiantbeast/momentus-shop-api/webhooks"
)

func main() {
	loggerProvider, logger := glog.Resolve("momentus-shop-api", nil, nil)
	logger = glog.Ensure(logger)

	if err := run(context.Background(), loggerProvider, logger); err != nil {
		logger.Error("service exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, loggerProvider core.LoggerProvider, logger core.Logger) error {
	provider := core.NewCfgxConfigProvider(envRawConfigLoader{})
	loaded, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return err
	}
	cfg, err := core.GoOptionsResolver{}.Resolve(core.DefaultConfig(), loaded, core.Config{})
	if err != nil {
		return err
	}

	orderAPI, err := shopify.NewAdminClient(shopify.AdminConfig{
		Domain:      cfg.Shop.Domain,
		AccessToken: cfg.Shop.AccessToken,
		APIVersion:  cfg.Shop.APIVersion,
	}, nil)
	if err != nil {
		return err
	}
	orderAPI.SetLogger(logger)
	mailer, err := mail.NewClient(mail.Config{
		Endpoint: cfg.Mail.Endpoint,
		APIKey:   cfg.Mail.APIKey,
		From:     cfg.Mail.From,
		ReplyTo:  cfg.Mail.ReplyTo,
	}, nil)
	if err != nil {
		return err
	}

	service, err := core.NewService(cfg,
		core.WithLogger(logger),
		core.WithLoggerProvider(loggerProvider),
		core.WithOrderAPI(orderAPI),
		core.WithMailer(mailer),
		core.WithTemplates(mail.NewLocaleTemplateStore()),
	)
	if err != nil {
		return err
	}

	verifier := shopify.NewWebhookVerifier(shopify.DefaultWebhookConfig(cfg.Webhook.Secret))
	processor := webhooks.NewProcessor(
		verifier,
		webhooks.NewMemoryDeliveryLedger(),
		&orderWebhookHandler{command: command.NewProcessOrderWebhookCommand(service)},
	)
	processor.ExtractID = shopify.ExtractDeliveryID

	queue := reminder.NewMemoryQueue(0)
	defer queue.Close()

	policy := gojob.RetryPolicy{MaxAttempts: 3, MaxDelay: time.Minute, DeadLetterOnMax: true}
	scheduler, err := reminder.NewScheduler(gojob.NewEnqueuerAdapter(queue), cfg.ReminderDelay, logger)
	if err != nil {
		return err
	}
	runner, err := reminder.NewRunner(
		gojob.NewDequeuerAdapter(queue, policy),
		service,
		logger,
		reminder.DefaultRunnerConfig(),
	)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      httpapi.NewRouter(processor, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := scheduler.Run(runCtx); err != nil {
			logger.Error("reminder scheduler stopped", "error", err.Error())
		}
	}()
	go func() {
		if err := runner.Run(runCtx); err != nil {
			logger.Error("reminder runner stopped", "error", err.Error())
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Address, "mode", cfg.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}
	logger.Info("shutting down")

	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// orderWebhookHandler runs the webhook command and reads the inbound result
// back from the command result collector.
type orderWebhookHandler struct {
	command *command.ProcessOrderWebhookCommand
}

func (h *orderWebhookHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	collector := gocmd.NewResult[core.InboundResult]()
	ctx = gocmd.ContextWithResult(ctx, collector)
	if err := h.command.Execute(ctx, command.ProcessOrderWebhookMessage{Body: req.Body}); err != nil {
		return core.InboundResult{}, err
	}
	result, ok := collector.Load()
	if !ok {
		return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
	}
	return result, nil
}
