/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Executor sends one GraphQL query+variables pair and decodes the data
// object into out. Failures come back as *APIError.
type Executor interface {
	Execute(ctx context.Context, opContext, query string, vars map[string]any, out any) error
}

type httpExecutor struct {
	endpoint string
	http     *http.Client
	log      zerolog.Logger
}

func newExecutor(cfg config.Config, log zerolog.Logger) *httpExecutor {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitLabToken})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = cfg.HTTPTimeout
	return &httpExecutor{
		endpoint: strings.TrimRight(cfg.GitLabBaseURL, "/") + "/api/graphql",
		http:     hc,
		log:      log,
	}
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *httpExecutor) Execute(ctx context.Context, opContext, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return newNetworkError(opContext, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return newNetworkError(opContext, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return newNetworkError(opContext, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return newTransportError(opContext, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var env graphqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return newNetworkError(opContext, err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, ge := range env.Errors {
			msgs = append(msgs, ge.Message)
		}
		return newProtocolError(opContext, msgs)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return newNetworkError(opContext, err)
		}
	}
	return nil
}

// Client bundles the executor and rate limiter behind the typed fetch
// operations the provider consumes.
type Client struct {
	cfg           config.Config
	exec          Executor
	limit         RateLimiter
	log           zerolog.Logger
	statusMatcher StatusMatcher
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{cfg: cfg, exec: newExecutor(cfg, log), limit: NewRateLimiter(), log: log}
}

// WithStatusMatcher overrides the in-progress status heuristic.
func (c *Client) WithStatusMatcher(m StatusMatcher) *Client {
	c.statusMatcher = m
	return c
}
