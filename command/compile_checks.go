package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessOrderWebhookMessage] = (*ProcessOrderWebhookCommand)(nil)
	_ gocmd.Commander[ReminderSweepMessage]       = (*ReminderSweepCommand)(nil)
)
