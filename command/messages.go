package command

import "fmt"

const (
	TypeProcessOrderWebhook = "orders.command.webhook.process"
	TypeReminderSweep       = "orders.command.reminder.sweep"
)

type ProcessOrderWebhookMessage struct {
	Body []byte
}

func (ProcessOrderWebhookMessage) Type() string { return TypeProcessOrderWebhook }

func (m ProcessOrderWebhookMessage) Validate() error {
	if len(m.Body) == 0 {
		return fmt.Errorf("command: webhook body is required")
	}
	return nil
}

type ReminderSweepMessage struct{}

func (ReminderSweepMessage) Type() string { return TypeReminderSweep }

func (ReminderSweepMessage) Validate() error { return nil }
