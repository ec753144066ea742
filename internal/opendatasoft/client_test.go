package opendatasoft

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/catalog/datasets/georef-spain-municipio/records", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "200", r.URL.Query().Get("offset"))
		w.Write([]byte(`{"total_count":8131,"results":[{"mun_code":"08019"},{"mun_code":"08015"}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 1000))
	resp, err := c.Records(context.Background(), "georef-spain-municipio", 100, 200)
	require.NoError(t, err)
	assert.Equal(t, 8131, resp.TotalCount)
	assert.Len(t, resp.Results, 2)
}

func TestRecordsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 1000))
	_, err := c.Records(context.Background(), "ds", 10, 0)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestRecordsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_count":`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 1000))
	_, err := c.Records(context.Background(), "ds", 10, 0)
	require.Error(t, err)
}

func TestRecordsRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(WithBaseURL("http://unreachable.invalid"))
	_, err := c.Records(ctx, "ds", 10, 0)
	require.Error(t, err)
}
