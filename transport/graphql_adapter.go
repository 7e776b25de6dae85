package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/thegiantbeast/momentus-shop-api/core"
)

const KindGraphQL = "graphql"

type GraphQLRequest struct {
	Query         string
	OperationName string
	Variables     map[string]any
	Headers       map[string]string
}

type GraphQLErrorEntry struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// GraphQLResponse separates the envelope: Data still needs per-mutation
// decoding by the caller, Errors are transport-level GraphQL errors (as
// opposed to field-level userErrors inside Data).
type GraphQLResponse struct {
	Data   json.RawMessage     `json:"data"`
	Errors []GraphQLErrorEntry `json:"errors"`
}

// GraphQLAdapter posts GraphQL documents to a fixed endpoint over the REST
// adapter. RetryAfter, when set, lets a throttled response be retried after
// the delay the endpoint asked for.
type GraphQLAdapter struct {
	Endpoint           string
	REST               *RESTAdapter
	RetryAfter         func(core.TransportResponse) (time.Duration, bool)
	MaxThrottleRetries int
	// Observe, when set, sees every response the endpoint returns, throttled
	// retries included, before any retry decision is made.
	Observe func(core.TransportResponse)
}

func NewGraphQLAdapter(endpoint string, client HTTPDoer) *GraphQLAdapter {
	return &GraphQLAdapter{
		Endpoint: strings.TrimSpace(endpoint),
		REST:     NewRESTAdapter(client),
	}
}

func (*GraphQLAdapter) Kind() string {
	return KindGraphQL
}

// Execute posts one GraphQL operation and decodes the response envelope.
// GraphQL errors in the envelope are returned as an external error; decoding
// Data is the caller's job.
func (a *GraphQLAdapter) Execute(ctx context.Context, req GraphQLRequest) (GraphQLResponse, error) {
	if a == nil || a.REST == nil {
		return GraphQLResponse{}, transportError(
			"transport: graphql adapter requires a rest adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	if strings.TrimSpace(a.Endpoint) == "" {
		return GraphQLResponse{}, transportError(
			"transport: graphql endpoint is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return GraphQLResponse{}, transportError(
			"transport: graphql query is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL, "endpoint": a.Endpoint},
		)
	}

	payload := map[string]any{"query": query}
	if operationName := strings.TrimSpace(req.OperationName); operationName != "" {
		payload["operationName"] = operationName
	}
	if len(req.Variables) > 0 {
		payload["variables"] = req.Variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return GraphQLResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: marshal graphql payload",
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL, "endpoint": a.Endpoint},
		)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for key, value := range req.Headers {
		headers[key] = value
	}

	response, err := a.post(ctx, headers, body)
	if err != nil {
		return GraphQLResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: graphql request failed",
			http.StatusBadGateway,
			map[string]any{"adapter": KindGraphQL, "endpoint": a.Endpoint},
		)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return GraphQLResponse{}, transportError(
			"transport: graphql endpoint returned non-2xx status",
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{
				"adapter":     KindGraphQL,
				"endpoint":    a.Endpoint,
				"status_code": response.StatusCode,
			},
		)
	}

	var decoded GraphQLResponse
	if err := json.Unmarshal(response.Body, &decoded); err != nil {
		return GraphQLResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode graphql response",
			http.StatusBadGateway,
			map[string]any{"adapter": KindGraphQL, "endpoint": a.Endpoint},
		)
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, entry := range decoded.Errors {
			messages = append(messages, entry.Message)
		}
		return decoded, transportError(
			"transport: graphql operation returned errors: "+strings.Join(messages, "; "),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"adapter": KindGraphQL, "endpoint": a.Endpoint},
		)
	}
	return decoded, nil
}

func (a *GraphQLAdapter) post(ctx context.Context, headers map[string]string, body []byte) (core.TransportResponse, error) {
	retries := a.MaxThrottleRetries
	for {
		response, err := a.REST.Do(ctx, core.TransportRequest{
			Method:  http.MethodPost,
			URL:     a.Endpoint,
			Headers: headers,
			Body:    body,
		})
		if err != nil {
			return core.TransportResponse{}, err
		}
		if a.Observe != nil {
			a.Observe(response)
		}
		if a.RetryAfter == nil || retries <= 0 {
			return response, nil
		}
		delay, throttled := a.RetryAfter(response)
		if !throttled {
			return response, nil
		}
		retries--
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return core.TransportResponse{}, ctx.Err()
		case <-timer.C:
		}
	}
}
