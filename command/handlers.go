package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/thegiantbeast/momentus-shop-api/core"
)

type OrderService interface {
	ProcessOrderEvent(ctx context.Context, body []byte) (core.InboundResult, error)
	SweepReminders(ctx context.Context) (core.SweepOutcome, error)
}

type ProcessOrderWebhookCommand struct {
	service OrderService
}

func NewProcessOrderWebhookCommand(service OrderService) *ProcessOrderWebhookCommand {
	return &ProcessOrderWebhookCommand{service: service}
}

func (c *ProcessOrderWebhookCommand) Execute(ctx context.Context, msg ProcessOrderWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid webhook message")
	}
	out, err := c.service.ProcessOrderEvent(ctx, msg.Body)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReminderSweepCommand struct {
	service OrderService
}

func NewReminderSweepCommand(service OrderService) *ReminderSweepCommand {
	return &ReminderSweepCommand{service: service}
}

func (c *ReminderSweepCommand) Execute(ctx context.Context, msg ReminderSweepMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order service is required")
	}
	_ = msg
	out, err := c.service.SweepReminders(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
