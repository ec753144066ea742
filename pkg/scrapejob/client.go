package scrapejob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.apify.com/v2"

// Client defines the scraping-job API operations.
type Client interface {
	// Start submits a run and returns the job with its run id and
	// result-dataset id. The job status starts at TO_BE_SUBMITTED
	// until the first poll observes the executor's state.
	Start(ctx context.Context, actor string, req RunRequest) (*Job, error)
	// PollStatus performs a single synchronous status fetch.
	PollStatus(ctx context.Context, runID string) (Status, error)
	// FetchResults retrieves the result dataset. Valid only once the
	// job has SUCCEEDED; any other state is a StateError.
	FetchResults(ctx context.Context, job *Job) ([]json.RawMessage, error)
}

// APIError is returned when the executor responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scrapejob: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a scraping-job client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runEnvelope struct {
	Data struct {
		ID               string `json:"id"`
		Status           Status `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"data"`
}

func (c *httpClient) Start(ctx context.Context, actor string, req RunRequest) (*Job, error) {
	var resp runEnvelope
	path := fmt.Sprintf("/acts/%s/runs", actor)
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, eris.Wrapf(err, "scrapejob: start run for actor %s", actor)
	}
	if resp.Data.ID == "" {
		return nil, eris.Errorf("scrapejob: start run for actor %s: no run id in response", actor)
	}
	return &Job{
		RunID:     resp.Data.ID,
		DatasetID: resp.Data.DefaultDatasetID,
		Status:    StatusToBeSubmitted,
		Request:   req,
	}, nil
}

func (c *httpClient) PollStatus(ctx context.Context, runID string) (Status, error) {
	var resp runEnvelope
	if err := c.get(ctx, fmt.Sprintf("/actor-runs/%s", runID), &resp); err != nil {
		return "", eris.Wrapf(err, "scrapejob: poll run %s", runID)
	}
	return resp.Data.Status, nil
}

func (c *httpClient) FetchResults(ctx context.Context, job *Job) ([]json.RawMessage, error) {
	if job.Status != StatusSucceeded {
		return nil, &StateError{RunID: job.RunID, Status: job.Status}
	}
	var items []json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("/datasets/%s/items", job.DatasetID), &items); err != nil {
		return nil, eris.Wrapf(err, "scrapejob: fetch dataset %s", job.DatasetID)
	}
	return items, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
