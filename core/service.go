package core

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service runs the order-state reconciliation pipeline. It holds no mutable
// state of its own: every invocation reads the snapshot fresh and the remote
// tag set is the only synchronization point between invocations.
type Service struct {
	config         Config
	logger         Logger
	loggerProvider LoggerProvider
	orderAPI       OrderAPI
	mailer         Mailer
	templates      TemplateStore
	now            func() time.Time
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("orders", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("orders"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time {
			return time.Now().UTC()
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, MapError(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, MapError(err)
	}

	if builder.orderAPI == nil {
		return nil, ordersError(
			"core: order api collaborator is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	if builder.mailer == nil {
		return nil, ordersError(
			"core: mailer collaborator is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	if builder.templates == nil {
		return nil, ordersError(
			"core: template store collaborator is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}

	return &Service{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		orderAPI:       builder.orderAPI,
		mailer:         builder.mailer,
		templates:      builder.templates,
		now:            builder.now,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// ProcessOrderEvent runs one webhook delivery through decode → decide →
// dispatch → remote update. Every handled branch answers 200; only the
// unreachable decision fallback surfaces as an error.
func (s *Service) ProcessOrderEvent(ctx context.Context, body []byte) (InboundResult, error) {
	startedAt := s.clock()

	snapshot, err := ParseOrderEvent(body)
	if err != nil {
		// A malformed payload cannot be repaired by redelivery, so it is
		// alerted and acknowledged instead of bounced back for a retry storm.
		s.sendOperatorAlert(ctx, AlertReasonEventRejected, snapshot, map[string]any{
			"error": err.Error(),
		})
		s.observe(ctx, startedAt, "order_event", nil, map[string]any{"rejected": true})
		return okResult(map[string]any{"rejected": true}), nil
	}

	markers := DecodeTags(snapshot.TagString)
	resolved := ResolveAttachments(snapshot, markers)
	decision := Decide(snapshot, markers, resolved, s.clock(), s.config.ReminderDelay)

	fields := map[string]any{
		"order_id":       snapshot.ID,
		"order_number":   snapshot.Number,
		"action":         string(decision.Action),
		"resolved_count": resolved.CountResolved(),
		"line_items":     snapshot.LineItemCount,
	}

	switch decision.Action {
	case ActionNone:
		s.observe(ctx, startedAt, "order_event", nil, fields)
		return okResult(map[string]any{"action": string(decision.Action), "reason": decision.Reason}), nil

	case ActionArmReminder:
		s.applyRemote(ctx, snapshot, markers, decision)
		s.observe(ctx, startedAt, "order_event", nil, fields)
		return okResult(map[string]any{"action": string(decision.Action)}), nil

	case ActionDispatch:
		outcome := s.dispatchEmails(ctx, snapshot, resolved, &decision)
		fields["sent_count"] = outcome.SentCount
		if outcome.Aborted {
			// The whole batch's next tags are discarded with the abort; the
			// redelivery will re-detect the remaining items as unsent.
			fields["aborted_on"] = outcome.FailedItem
			s.observe(ctx, startedAt, "order_event", nil, fields)
			return okResult(map[string]any{
				"action":  string(decision.Action),
				"aborted": true,
			}), nil
		}
		s.applyRemote(ctx, snapshot, markers, decision)
		s.observe(ctx, startedAt, "order_event", nil, fields)
		return okResult(map[string]any{
			"action":   string(decision.Action),
			"complete": decision.Complete,
		}), nil
	}

	err = ordersError(
		fmt.Sprintf("core: unhandled decision action %q", decision.Action),
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		map[string]any{"order_id": snapshot.ID},
	)
	s.observe(ctx, startedAt, "order_event", err, fields)
	return InboundResult{
		Accepted:   false,
		StatusCode: http.StatusInternalServerError,
		Metadata:   map[string]any{"order_id": snapshot.ID},
	}, err
}

func okResult(metadata map[string]any) InboundResult {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata:   metadata,
	}
}

func (s *Service) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) observe(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) {
	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["duration_ms"] = s.clock().Sub(startedAt).Milliseconds()
	if err != nil {
		contextFields["status"] = "failure"
		contextFields["error"] = err.Error()
		s.logError(ctx, operation+" failed", contextFields)
		return
	}
	contextFields["status"] = "success"
	s.logInfo(ctx, operation+" handled", contextFields)
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "info", message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "error", message, fields)
}

func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(fields)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
