// Package graphql implements gateway.Gateway against a managed GraphQL API: queries and
// mutations over HTTP, the created stream over a graphql-transport-ws websocket.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"restaurant_live/internal/gateway"
	"restaurant_live/internal/model"
)

const defaultHttpTimeout = 30 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second
const defaultAckTimeout = 10 * time.Second

func defaultHttpClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

type Options struct {
	Endpoint    string
	RealtimeURL string
	Token       string
	Timeout     time.Duration
	AckTimeout  time.Duration
	HttpClient  *http.Client
}

type Client struct {
	endpoint    string
	realtimeURL string
	token       string
	ackTimeout  time.Duration
	httpClient  *http.Client
	logger      zerolog.Logger
}

func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultHttpTimeout
	}
	ackTimeout := opts.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = defaultAckTimeout
	}
	httpClient := opts.HttpClient
	if httpClient == nil {
		httpClient = defaultHttpClient(timeout)
	}
	return &Client{
		endpoint:    opts.Endpoint,
		realtimeURL: opts.RealtimeURL,
		token:       opts.Token,
		ackTimeout:  ackTimeout,
		httpClient:  httpClient,
		logger:      logger.With().Str("component", "graphql_gateway").Logger(),
	}
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response[D any] struct {
	Data   D              `json:"data"`
	Errors []graphQLError `json:"errors,omitempty"`
}

type graphQLError struct {
	Message   string `json:"message"`
	ErrorType string `json:"errorType,omitempty"`
}

func (e graphQLError) String() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("%s: %s", e.ErrorType, e.Message)
	}
	return e.Message
}

func joinErrors(errs []graphQLError) error {
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.String()
	}
	return errors.New(strings.Join(messages, "; "))
}

func post[D any](ctx context.Context, c *Client, query string, variables map[string]any) (D, error) {
	var empty D

	requestBodyBytes, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return empty, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return empty, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	r, err := c.httpClient.Do(req)
	if err != nil {
		return empty, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return empty, err
	}

	if http.StatusOK != r.StatusCode {
		// the response body is the error message
		errorMessage := strings.TrimSpace(string(responseBodyBytes))
		return empty, fmt.Errorf("status %d: %s", r.StatusCode, errorMessage)
	}

	var result response[D]
	if err := json.Unmarshal(responseBodyBytes, &result); err != nil {
		return empty, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Errors) > 0 {
		return empty, joinErrors(result.Errors)
	}
	return result.Data, nil
}

type listRestaurantsData struct {
	ListRestaurants *struct {
		Items []model.Restaurant `json:"items"`
	} `json:"listRestaurants"`
}

func (c *Client) ListAll(ctx context.Context) ([]model.Restaurant, error) {
	data, err := post[listRestaurantsData](ctx, c, listRestaurantsQuery, nil)
	if err != nil {
		return nil, gateway.Fail(gateway.OpListAll, err)
	}
	restaurants := []model.Restaurant{}
	if data.ListRestaurants != nil {
		restaurants = append(restaurants, data.ListRestaurants.Items...)
	}
	return restaurants, nil
}

type createRestaurantData struct {
	CreateRestaurant *model.Restaurant `json:"createRestaurant"`
}

func (c *Client) CreateOne(ctx context.Context, input model.CreateRestaurantInput) (model.Restaurant, error) {
	data, err := post[createRestaurantData](ctx, c, createRestaurantMutation, map[string]any{"input": input})
	if err != nil {
		return model.Restaurant{}, gateway.Fail(gateway.OpCreateOne, err)
	}
	if data.CreateRestaurant == nil {
		return model.Restaurant{}, gateway.Fail(gateway.OpCreateOne, errors.New("empty createRestaurant result"))
	}
	return *data.CreateRestaurant, nil
}

type deleteRestaurantData struct {
	DeleteRestaurant *struct {
		ID string `json:"id"`
	} `json:"deleteRestaurant"`
}

func (c *Client) DeleteOne(ctx context.Context, id string) error {
	input := map[string]any{"id": id}
	data, err := post[deleteRestaurantData](ctx, c, deleteRestaurantMutation, map[string]any{"input": input})
	if err != nil {
		return gateway.Fail(gateway.OpDeleteOne, err)
	}
	if data.DeleteRestaurant == nil {
		return gateway.Fail(gateway.OpDeleteOne, fmt.Errorf("restaurant %s not found", id))
	}
	return nil
}

var _ gateway.Gateway = (*Client)(nil)
