package scrapejob

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/acts/test-actor/runs", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req RunRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "es", req.Country)
		assert.Equal(t, "barcelona", req.Location)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"run-1","status":"READY","defaultDatasetId":"ds-1"}}`))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	job, err := c.Start(context.Background(), "test-actor", RunRequest{
		Country:   "es",
		Location:  "barcelona",
		Operation: "sale",
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", job.RunID)
	assert.Equal(t, "ds-1", job.DatasetID)
	assert.Equal(t, StatusToBeSubmitted, job.Status)
}

func TestStartNoRunID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.Start(context.Background(), "test-actor", RunRequest{})
	require.Error(t, err)
}

func TestStartAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.Start(context.Background(), "test-actor", RunRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestPollStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/actor-runs/run-1", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"run-1","status":"RUNNING"}}`))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	status, err := c.PollStatus(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)
}

func TestFetchResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/ds-1/items", r.URL.Path)
		w.Write([]byte(`[{"propertyCode":"p1"},{"propertyCode":"p2"}]`))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	job := &Job{RunID: "run-1", DatasetID: "ds-1", Status: StatusSucceeded}
	items, err := c.FetchResults(context.Background(), job)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetchResultsStateGuard(t *testing.T) {
	c := NewClient("tok", WithBaseURL("http://unreachable.invalid"))

	for _, status := range []Status{StatusToBeSubmitted, StatusStarted, StatusReady, StatusRunning, StatusFailed, StatusAborted} {
		job := &Job{RunID: "run-1", DatasetID: "ds-1", Status: status}
		_, err := c.FetchResults(context.Background(), job)
		require.Error(t, err, "status %s", status)

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr, "status %s", status)
		assert.Equal(t, status, stateErr.Status)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusAborted.Terminal())
	assert.False(t, StatusToBeSubmitted.Terminal())
	assert.False(t, StatusStarted.Terminal())
	assert.False(t, StatusReady.Terminal())
	assert.False(t, StatusRunning.Terminal())
}
