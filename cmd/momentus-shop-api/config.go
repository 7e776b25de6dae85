package main

import (
	"context"
	"os"
	"strings"
	"time"
)

const envPrefix = "MOMENTUS_"

// envRawConfigLoader maps MOMENTUS_* environment variables onto the nested
// raw config layer the cfgx provider consumes.
type envRawConfigLoader struct{}

func (envRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	raw := map[string]any{}

	setString(raw, "service_name", env("SERVICE_NAME"))
	setString(raw, "mode", env("MODE"))
	setString(raw, "operator_email", env("OPERATOR_EMAIL"))
	if delay := env("REMINDER_DELAY"); delay != "" {
		parsed, err := time.ParseDuration(delay)
		if err != nil {
			return nil, err
		}
		raw["reminder_delay"] = parsed
	}

	shop := map[string]any{}
	setString(shop, "domain", env("SHOP_DOMAIN"))
	setString(shop, "access_token", env("SHOP_ACCESS_TOKEN"))
	setString(shop, "api_version", env("SHOP_API_VERSION"))
	if len(shop) > 0 {
		raw["shop"] = shop
	}

	mail := map[string]any{}
	setString(mail, "endpoint", env("MAIL_ENDPOINT"))
	setString(mail, "api_key", env("MAIL_API_KEY"))
	setString(mail, "from", env("MAIL_FROM"))
	setString(mail, "reply_to", env("MAIL_REPLY_TO"))
	if len(mail) > 0 {
		raw["mail"] = mail
	}

	webhook := map[string]any{}
	setString(webhook, "secret", env("WEBHOOK_SECRET"))
	if len(webhook) > 0 {
		raw["webhook"] = webhook
	}

	server := map[string]any{}
	setString(server, "address", env("SERVER_ADDRESS"))
	if len(server) > 0 {
		raw["server"] = server
	}

	return raw, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func setString(target map[string]any, key string, value string) {
	if value != "" {
		target[key] = value
	}
}
