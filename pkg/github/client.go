// Package github talks to the GitHub REST, GraphQL and raw content endpoints
// used to discover and download skills.
package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/vunamhung/antikit/pkg/config"
	"github.com/vunamhung/antikit/pkg/logger"
)

const userAgent = "antikit-cli"

// Client wraps the GitHub API client with the raw and GraphQL endpoints.
type Client struct {
	client     *github.Client
	httpClient *http.Client
	token      string

	apiURL     string
	graphqlURL string
	rawURL     string

	retryAttempts uint
	retryDelay    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithToken authenticates requests with a personal access token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithEndpoints overrides the REST, GraphQL and raw content base URLs. Empty
// values keep the defaults.
func WithEndpoints(apiURL, graphqlURL, rawURL string) Option {
	return func(c *Client) {
		if apiURL != "" {
			c.apiURL = apiURL
		}
		if graphqlURL != "" {
			c.graphqlURL = graphqlURL
		}
		if rawURL != "" {
			c.rawURL = rawURL
		}
	}
}

// WithHTTPClient sets the transport used for all requests. The token, when
// set, is layered on top of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetry sets how often raw and GraphQL requests are attempted.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
		c.retryDelay = delay
	}
}

// NewClient creates a new GitHub client with optional authentication.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		apiURL:        config.DefaultAPIURL,
		graphqlURL:    config.DefaultGraphQLURL,
		rawURL:        config.DefaultRawURL,
		retryAttempts: 3,
		retryDelay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	log := logger.G(ctx)

	base := c.httpClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}

	hc := base
	if c.token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
		hc = &http.Client{
			Timeout: base.Timeout,
			Transport: &oauth2.Transport{
				Source: ts,
				Base:   base.Transport,
			},
		}
		log.Debug("GitHub client initialized with authentication")
	} else {
		log.Debug("no GitHub token provided, API rate limits will be restricted")
	}
	c.httpClient = hc

	client := github.NewClient(hc)
	client.UserAgent = userAgent

	baseURL, err := url.Parse(strings.TrimSuffix(c.apiURL, "/") + "/")
	if err != nil {
		return nil, errors.Wrap(err, "invalid GitHub API URL")
	}
	client.BaseURL = baseURL
	c.client = client

	return c, nil
}

// HasToken reports whether requests are authenticated.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Token returns the configured token.
func (c *Client) Token() string {
	return c.token
}
