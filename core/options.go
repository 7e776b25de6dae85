package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	orderAPI        OrderAPI
	mailer          Mailer
	templates       TemplateStore
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithOrderAPI(api OrderAPI) Option {
	return func(b *serviceBuilder) {
		b.orderAPI = api
	}
}

func WithMailer(mailer Mailer) Option {
	return func(b *serviceBuilder) {
		b.mailer = mailer
	}
}

func WithTemplates(store TemplateStore) Option {
	return func(b *serviceBuilder) {
		b.templates = store
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

// WithNow pins the clock, which the decision engine uses for timer tags.
func WithNow(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("orders", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticRawConfigLoader exposes an in-memory raw layer, mostly for wiring and
// tests.
func StaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults, loaded config, and runtime overrides as
// layered option scopes, runtime winning.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.Mode) != "" {
		layer["mode"] = cfg.Mode
	}
	if includeZero || strings.TrimSpace(cfg.OperatorEmail) != "" {
		layer["operator_email"] = cfg.OperatorEmail
	}
	if includeZero || cfg.ReminderDelay > 0 {
		layer["reminder_delay"] = cfg.ReminderDelay
	}

	shop := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Shop.Domain) != "" {
		shop["domain"] = cfg.Shop.Domain
	}
	if includeZero || strings.TrimSpace(cfg.Shop.AccessToken) != "" {
		shop["access_token"] = cfg.Shop.AccessToken
	}
	if includeZero || strings.TrimSpace(cfg.Shop.APIVersion) != "" {
		shop["api_version"] = cfg.Shop.APIVersion
	}
	if len(shop) > 0 {
		layer["shop"] = shop
	}

	mail := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Mail.Endpoint) != "" {
		mail["endpoint"] = cfg.Mail.Endpoint
	}
	if includeZero || strings.TrimSpace(cfg.Mail.APIKey) != "" {
		mail["api_key"] = cfg.Mail.APIKey
	}
	if includeZero || strings.TrimSpace(cfg.Mail.From) != "" {
		mail["from"] = cfg.Mail.From
	}
	if includeZero || strings.TrimSpace(cfg.Mail.ReplyTo) != "" {
		mail["reply_to"] = cfg.Mail.ReplyTo
	}
	if len(mail) > 0 {
		layer["mail"] = mail
	}

	if includeZero || strings.TrimSpace(cfg.Webhook.Secret) != "" {
		layer["webhook"] = map[string]any{"secret": cfg.Webhook.Secret}
	}
	if includeZero || strings.TrimSpace(cfg.Server.Address) != "" {
		layer["server"] = map[string]any{"address": cfg.Server.Address}
	}
	return layer
}
