// Package rest is a Backend for PostgREST-style HTTP APIs such as Supabase, with change
// notifications from the realtime websocket endpoint.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sentiment-globe/internal/store"
)

type Config struct {
	BaseURL string
	// Key is sent as both the apikey header and the bearer token.
	Key     string
	Timeout time.Duration
	// Heartbeat is the realtime keepalive interval.
	Heartbeat time.Duration
}

type Client struct {
	config     Config
	httpClient *http.Client
	log        logrus.FieldLogger
}

func New(config Config, log logrus.FieldLogger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Heartbeat <= 0 {
		config.Heartbeat = 30 * time.Second
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		log:        log.WithField("backend", "rest"),
	}
}

func (c *Client) Name() string { return "rest" }

func (c *Client) Countries(ctx context.Context) ([]store.Row, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "name.asc")
	return c.get(ctx, store.TableCountries, q)
}

func (c *Client) News(ctx context.Context, countryID int64) ([]store.Row, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("country_id", "eq."+strconv.FormatInt(countryID, 10))
	q.Set("order", "timestamp.desc")
	return c.get(ctx, store.TableNews, q)
}

func (c *Client) Sentiment(ctx context.Context) ([]store.Row, error) {
	q := url.Values{}
	q.Set("select", "country_name,sentiment_score,color_code")
	return c.get(ctx, store.TableSentiment, q)
}

func (c *Client) get(ctx context.Context, table store.Table, q url.Values) ([]store.Row, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.config.BaseURL, table, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", table, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Key != "" {
		req.Header.Set("apikey", c.config.Key)
		req.Header.Set("Authorization", "Bearer "+c.config.Key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s request failed: status %d: %s", table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var rows []store.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", table, err)
	}

	c.log.WithFields(logrus.Fields{"table": table, "rows": len(rows)}).Debug("fetched")
	return rows, nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
