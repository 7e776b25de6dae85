package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	ModeProduction = "production"
	ModeDebug      = "debug"
)

const DefaultReminderDelay = 15 * time.Minute

type ShopConfig struct {
	Domain      string `koanf:"domain" mapstructure:"domain"`
	AccessToken string `koanf:"access_token" mapstructure:"access_token"`
	APIVersion  string `koanf:"api_version" mapstructure:"api_version"`
}

type MailConfig struct {
	Endpoint string `koanf:"endpoint" mapstructure:"endpoint"`
	APIKey   string `koanf:"api_key" mapstructure:"api_key"`
	From     string `koanf:"from" mapstructure:"from"`
	ReplyTo  string `koanf:"reply_to" mapstructure:"reply_to"`
}

type WebhookConfig struct {
	Secret string `koanf:"secret" mapstructure:"secret"`
}

type ServerConfig struct {
	Address string `koanf:"address" mapstructure:"address"`
}

// Config is built once at process start and passed into every component.
// Debug mode reroutes all customer-facing mail to the operator inbox and
// drops BCC copies.
type Config struct {
	ServiceName   string        `koanf:"service_name" mapstructure:"service_name"`
	Mode          string        `koanf:"mode" mapstructure:"mode"`
	OperatorEmail string        `koanf:"operator_email" mapstructure:"operator_email"`
	ReminderDelay time.Duration `koanf:"reminder_delay" mapstructure:"reminder_delay"`
	Shop          ShopConfig    `koanf:"shop" mapstructure:"shop"`
	Mail          MailConfig    `koanf:"mail" mapstructure:"mail"`
	Webhook       WebhookConfig `koanf:"webhook" mapstructure:"webhook"`
	Server        ServerConfig  `koanf:"server" mapstructure:"server"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:   "momentus-shop-api",
		Mode:          ModeProduction,
		ReminderDelay: DefaultReminderDelay,
		Shop: ShopConfig{
			APIVersion: "2024-01",
		},
		Server: ServerConfig{
			Address: ":8080",
		},
	}
}

func (c Config) Debug() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), ModeDebug)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case ModeProduction, ModeDebug:
	default:
		return fmt.Errorf("core: mode must be %q or %q", ModeProduction, ModeDebug)
	}
	if strings.TrimSpace(c.OperatorEmail) == "" {
		return fmt.Errorf("core: operator_email is required")
	}
	if c.ReminderDelay <= 0 {
		return fmt.Errorf("core: reminder_delay must be positive")
	}
	if strings.TrimSpace(c.Shop.Domain) == "" {
		return fmt.Errorf("core: shop.domain is required")
	}
	if strings.TrimSpace(c.Shop.AccessToken) == "" {
		return fmt.Errorf("core: shop.access_token is required")
	}
	if strings.TrimSpace(c.Mail.Endpoint) == "" {
		return fmt.Errorf("core: mail.endpoint is required")
	}
	if strings.TrimSpace(c.Mail.From) == "" {
		return fmt.Errorf("core: mail.from is required")
	}
	if strings.TrimSpace(c.Webhook.Secret) == "" {
		return fmt.Errorf("core: webhook.secret is required")
	}
	return nil
}
