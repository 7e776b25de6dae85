package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/thegiantbeast/momentus-shop-api/core"
	"github.com/thegiantbeast/momentus-shop-api/transport"
)

const (
	defaultAPIVersion   = "2024-01"
	defaultDomainSuffix = ".myshopify.com"

	accessTokenHeader = "X-Shopify-Access-Token"

	searchPageSize = 50
)

type AdminConfig struct {
	Domain      string
	AccessToken string
	APIVersion  string
}

// AdminClient speaks the Shopify Admin GraphQL API. All order state this
// service touches (tags, fulfillment orders) flows through it.
type AdminClient struct {
	graphql *transport.GraphQLAdapter

	mu           sync.Mutex
	logger       core.Logger
	callLimit    CallLimit
	hasCallLimit bool
}

func NewAdminClient(cfg AdminConfig, client transport.HTTPDoer) (*AdminClient, error) {
	domain, err := normalizeShopDomain(cfg.Domain)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("shopify: access token is required")
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}

	endpoint := (&url.URL{
		Scheme: "https",
		Host:   domain,
		Path:   "/admin/api/" + version + "/graphql.json",
	}).String()

	graphql := transport.NewGraphQLAdapter(endpoint, client)
	graphql.REST.DefaultHeaders = map[string]string{accessTokenHeader: token}
	graphql.RetryAfter = RetryAfterFromResponse
	graphql.MaxThrottleRetries = 1
	admin := &AdminClient{graphql: graphql}
	graphql.Observe = admin.observeResponse
	return admin, nil
}

// SetLogger enables the low call budget warning. Safe to skip; the client
// still tracks the bucket without it.
func (c *AdminClient) SetLogger(logger core.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// LastCallLimit reports the admin API call bucket from the most recent
// response, if any response carried one yet.
func (c *AdminClient) LastCallLimit() (CallLimit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callLimit, c.hasCallLimit
}

func (c *AdminClient) observeResponse(response core.TransportResponse) {
	limit, ok := ParseCallLimit(response.Headers)
	if !ok {
		return
	}
	c.mu.Lock()
	c.callLimit = limit
	c.hasCallLimit = true
	logger := c.logger
	c.mu.Unlock()

	if logger != nil && limit.Remaining <= lowCallBudgetThreshold {
		logger.Warn("admin api call budget low",
			"used", limit.Used,
			"limit", limit.Limit,
			"remaining", limit.Remaining,
		)
	}
}

type graphqlUserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func toUserErrors(entries []graphqlUserError) []core.UserError {
	if len(entries) == 0 {
		return nil
	}
	out := make([]core.UserError, 0, len(entries))
	for _, entry := range entries {
		out = append(out, core.UserError{Field: entry.Field, Message: entry.Message})
	}
	return out
}

const orderTagsUpdateMutation = `
mutation OrderTagsUpdate($id: ID!, $tags: [String!]!) {
  orderUpdate(input: {id: $id, tags: $tags}) {
    order { id }
    userErrors { field message }
  }
}`

func (c *AdminClient) UpdateOrderTags(ctx context.Context, orderID string, tags []string) (core.OrderUpdateResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return core.OrderUpdateResult{}, fmt.Errorf("shopify: order id is required")
	}

	response, err := c.graphql.Execute(ctx, transport.GraphQLRequest{
		Query:         orderTagsUpdateMutation,
		OperationName: "OrderTagsUpdate",
		Variables:     map[string]any{"id": orderID, "tags": tags},
	})
	if err != nil {
		return core.OrderUpdateResult{}, err
	}

	var payload struct {
		OrderUpdate struct {
			UserErrors []graphqlUserError `json:"userErrors"`
		} `json:"orderUpdate"`
	}
	if err := json.Unmarshal(response.Data, &payload); err != nil {
		return core.OrderUpdateResult{}, fmt.Errorf("shopify: decode orderUpdate response: %w", err)
	}
	return core.OrderUpdateResult{UserErrors: toUserErrors(payload.OrderUpdate.UserErrors)}, nil
}

const openFulfillmentOrderQuery = `
query OpenFulfillmentOrder($id: ID!) {
  order(id: $id) {
    fulfillmentOrders(first: 10) {
      edges { node { id status } }
    }
  }
}`

// GetOpenFulfillmentOrderID returns the first fulfillment order that is not
// CLOSED, or empty when the order has none.
func (c *AdminClient) GetOpenFulfillmentOrderID(ctx context.Context, orderID string) (string, error) {
	if strings.TrimSpace(orderID) == "" {
		return "", fmt.Errorf("shopify: order id is required")
	}

	response, err := c.graphql.Execute(ctx, transport.GraphQLRequest{
		Query:         openFulfillmentOrderQuery,
		OperationName: "OpenFulfillmentOrder",
		Variables:     map[string]any{"id": orderID},
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		Order *struct {
			FulfillmentOrders struct {
				Edges []struct {
					Node struct {
						ID     string `json:"id"`
						Status string `json:"status"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"fulfillmentOrders"`
		} `json:"order"`
	}
	if err := json.Unmarshal(response.Data, &payload); err != nil {
		return "", fmt.Errorf("shopify: decode fulfillmentOrders response: %w", err)
	}
	if payload.Order == nil {
		return "", fmt.Errorf("shopify: order %s not found", orderID)
	}
	for _, edge := range payload.Order.FulfillmentOrders.Edges {
		if !strings.EqualFold(edge.Node.Status, "CLOSED") {
			return edge.Node.ID, nil
		}
	}
	return "", nil
}

const tagsAndFulfillmentMutation = `
mutation OrderTagsAndFulfillment($id: ID!, $tags: [String!]!, $fulfillment: FulfillmentV2Input!) {
  orderUpdate(input: {id: $id, tags: $tags}) {
    order { id }
    userErrors { field message }
  }
  fulfillmentCreateV2(fulfillment: $fulfillment) {
    fulfillment { id }
    userErrors { field message }
  }
}`

// UpdateTagsAndCreateFulfillment issues the tag write and the fulfillment
// create in one GraphQL document. With no open fulfillment order the tag
// write still goes out and the missing fulfillment surfaces as a userError.
func (c *AdminClient) UpdateTagsAndCreateFulfillment(
	ctx context.Context,
	orderID string,
	tags []string,
	fulfillmentOrderID string,
) (core.FulfillmentUpdateResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return core.FulfillmentUpdateResult{}, fmt.Errorf("shopify: order id is required")
	}

	if strings.TrimSpace(fulfillmentOrderID) == "" {
		tagResult, err := c.UpdateOrderTags(ctx, orderID, tags)
		if err != nil {
			return core.FulfillmentUpdateResult{}, err
		}
		return core.FulfillmentUpdateResult{
			TagUserErrors: tagResult.UserErrors,
			FulfillmentUserErrors: []core.UserError{
				{Field: []string{"fulfillmentOrderId"}, Message: "no open fulfillment order available"},
			},
		}, nil
	}

	response, err := c.graphql.Execute(ctx, transport.GraphQLRequest{
		Query:         tagsAndFulfillmentMutation,
		OperationName: "OrderTagsAndFulfillment",
		Variables: map[string]any{
			"id":   orderID,
			"tags": tags,
			"fulfillment": map[string]any{
				"lineItemsByFulfillmentOrder": []map[string]any{
					{"fulfillmentOrderId": fulfillmentOrderID},
				},
			},
		},
	})
	if err != nil {
		return core.FulfillmentUpdateResult{}, err
	}

	var payload struct {
		OrderUpdate struct {
			UserErrors []graphqlUserError `json:"userErrors"`
		} `json:"orderUpdate"`
		FulfillmentCreateV2 struct {
			UserErrors []graphqlUserError `json:"userErrors"`
		} `json:"fulfillmentCreateV2"`
	}
	if err := json.Unmarshal(response.Data, &payload); err != nil {
		return core.FulfillmentUpdateResult{}, fmt.Errorf("shopify: decode fulfillment response: %w", err)
	}
	return core.FulfillmentUpdateResult{
		TagUserErrors:         toUserErrors(payload.OrderUpdate.UserErrors),
		FulfillmentUserErrors: toUserErrors(payload.FulfillmentCreateV2.UserErrors),
	}, nil
}

const orderQuery = `
query Order($id: ID!) {
  order(id: $id) {
    id
    name
    email
    customerLocale
    tags
  }
}`

func (c *AdminClient) GetOrder(ctx context.Context, orderID string) (core.OrderRecord, error) {
	if strings.TrimSpace(orderID) == "" {
		return core.OrderRecord{}, fmt.Errorf("shopify: order id is required")
	}

	response, err := c.graphql.Execute(ctx, transport.GraphQLRequest{
		Query:         orderQuery,
		OperationName: "Order",
		Variables:     map[string]any{"id": orderID},
	})
	if err != nil {
		return core.OrderRecord{}, err
	}

	var payload struct {
		Order *struct {
			ID             string   `json:"id"`
			Name           string   `json:"name"`
			Email          string   `json:"email"`
			CustomerLocale string   `json:"customerLocale"`
			Tags           []string `json:"tags"`
		} `json:"order"`
	}
	if err := json.Unmarshal(response.Data, &payload); err != nil {
		return core.OrderRecord{}, fmt.Errorf("shopify: decode order response: %w", err)
	}
	if payload.Order == nil {
		return core.OrderRecord{}, fmt.Errorf("shopify: order %s not found", orderID)
	}
	return core.OrderRecord{
		ID:        payload.Order.ID,
		Number:    payload.Order.Name,
		Email:     payload.Order.Email,
		Locale:    payload.Order.CustomerLocale,
		TagString: strings.Join(payload.Order.Tags, ", "),
	}, nil
}

const ordersByTagQuery = `
query OrdersByTag($query: String!, $first: Int!, $after: String) {
  orders(query: $query, first: $first, after: $after) {
    edges {
      cursor
      node { id }
    }
    pageInfo { hasNextPage }
  }
}`

func (c *AdminClient) SearchOrderIDsByTag(ctx context.Context, tag string) ([]string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, fmt.Errorf("shopify: search tag is required")
	}

	var ids []string
	var after *string
	for {
		variables := map[string]any{
			"query": fmt.Sprintf("tag:'%s'", tag),
			"first": searchPageSize,
		}
		if after != nil {
			variables["after"] = *after
		}

		response, err := c.graphql.Execute(ctx, transport.GraphQLRequest{
			Query:         ordersByTagQuery,
			OperationName: "OrdersByTag",
			Variables:     variables,
		})
		if err != nil {
			return nil, err
		}

		var payload struct {
			Orders struct {
				Edges []struct {
					Cursor string `json:"cursor"`
					Node   struct {
						ID string `json:"id"`
					} `json:"node"`
				} `json:"edges"`
				PageInfo struct {
					HasNextPage bool `json:"hasNextPage"`
				} `json:"pageInfo"`
			} `json:"orders"`
		}
		if err := json.Unmarshal(response.Data, &payload); err != nil {
			return nil, fmt.Errorf("shopify: decode orders search response: %w", err)
		}

		for _, edge := range payload.Orders.Edges {
			ids = append(ids, edge.Node.ID)
		}
		if !payload.Orders.PageInfo.HasNextPage || len(payload.Orders.Edges) == 0 {
			return ids, nil
		}
		cursor := payload.Orders.Edges[len(payload.Orders.Edges)-1].Cursor
		after = &cursor
	}
}

func normalizeShopDomain(value string) (string, error) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "", fmt.Errorf("shopify: shop domain is required")
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("shopify: parse shop domain: %w", err)
		}
		trimmed = strings.TrimSpace(strings.ToLower(parsed.Hostname()))
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", fmt.Errorf("shopify: invalid shop domain")
	}
	if !strings.Contains(trimmed, ".") {
		trimmed += defaultDomainSuffix
	}
	return trimmed, nil
}

var _ core.OrderAPI = (*AdminClient)(nil)
