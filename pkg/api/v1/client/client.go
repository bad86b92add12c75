// Package client provides the API client for interacting with the forge API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/appforge/forge/internal/api/v1/handlers"
	"github.com/appforge/forge/internal/api/v1/routes"
	"github.com/appforge/forge/internal/db/models"
	"github.com/appforge/forge/internal/types"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for the API client
type Client interface {
	// HealthCheck probes the server
	HealthCheck(ctx context.Context) (map[string]string, error)
	// Generate starts a generation job and returns its id
	Generate(ctx context.Context, req handlers.GenerateRequest) (string, error)
	// GetStatus returns the authoritative snapshot for a job
	GetStatus(ctx context.Context, jobID string) (types.JobStatusSnapshot, error)
	// ListJobs returns job summaries
	ListJobs(ctx context.Context, opts *models.ListOptions) ([]types.JobSummary, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string
	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: "http://localhost:" + routes.DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (*APIClient, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &APIClient{baseURL: opts.BaseURL, timeout: timeout}, nil
}

// BaseURL returns the configured server address
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// HealthCheck probes the server
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := c.executeRequest(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Generate starts a generation job and returns its id
func (c *APIClient) Generate(ctx context.Context, req handlers.GenerateRequest) (string, error) {
	var out handlers.GenerateResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.APIPrefix+"/generate", req, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// GetStatus returns the authoritative snapshot for a job
func (c *APIClient) GetStatus(ctx context.Context, jobID string) (types.JobStatusSnapshot, error) {
	var out types.JobStatusSnapshot
	err := c.executeRequest(ctx, http.MethodGet, routes.APIPrefix+"/status/"+url.PathEscape(jobID), nil, &out)
	return out, err
}

// ListJobs returns job summaries
func (c *APIClient) ListJobs(ctx context.Context, opts *models.ListOptions) ([]types.JobSummary, error) {
	endpoint := routes.APIPrefix + "/jobs"
	if opts != nil {
		params := url.Values{}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
		if opts.Status != nil {
			params.Set("status", opts.Status.String())
		}
		if opts.Query != "" {
			params.Set("q", opts.Query)
		}
		if encoded := params.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}
	}
	var out []types.JobSummary
	err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &out)
	return out, err
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")

	if body != nil {
		agent.JSON(body)
	}
	return agent, nil
}

// executeRequest sends the HTTP request and decodes the response into v
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, v interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	statusCode, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}
	if statusCode < 200 || statusCode >= 300 {
		return &fiber.Error{
			Code:    statusCode,
			Message: strings.TrimSpace(string(respBody)),
		}
	}
	if v != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}
