package seeder

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivenda-group/geoseed-cli/internal/feature"
	"github.com/vivenda-group/geoseed-cli/internal/model"
	"github.com/vivenda-group/geoseed-cli/internal/registry"
	"github.com/vivenda-group/geoseed-cli/internal/store"
	"github.com/vivenda-group/geoseed-cli/pkg/scrapejob"
)

const listingGeometry = `{"type":"Point","coordinates":[2.16,41.39]}`

func listingRecord(id, title string) json.RawMessage {
	return listingRecordIn(id, title, "Barcelona")
}

func listingRecordIn(id, title, municipality string) json.RawMessage {
	return json.RawMessage(`{
		"properties": {"propertyCode": "` + id + `", "title": "` + title + `", "municipality": "` + municipality + `", "price": 250000, "url": "https://example.com/` + id + `"},
		"geometry": ` + listingGeometry + `
	}`)
}

// scripted scrape client: one run that succeeds after a poll and
// returns canned records.
type scriptedClient struct {
	records  []json.RawMessage
	statuses []scrapejob.Status
	polls    int
	started  bool
}

func (c *scriptedClient) Start(_ context.Context, actor string, req scrapejob.RunRequest) (*scrapejob.Job, error) {
	c.started = true
	return &scrapejob.Job{
		RunID:     "run-1",
		DatasetID: "ds-1",
		Status:    scrapejob.StatusToBeSubmitted,
		Request:   req,
	}, nil
}

func (c *scriptedClient) PollStatus(context.Context, string) (scrapejob.Status, error) {
	s := c.statuses[c.polls]
	if c.polls < len(c.statuses)-1 {
		c.polls++
	}
	return s, nil
}

func (c *scriptedClient) FetchResults(_ context.Context, job *scrapejob.Job) ([]json.RawMessage, error) {
	if job.Status != scrapejob.StatusSucceeded {
		return nil, &scrapejob.StateError{RunID: job.RunID, Status: job.Status}
	}
	return c.records, nil
}

func listingsDataset(t *testing.T) registry.Dataset {
	t.Helper()
	return registry.Dataset{
		Name:      "listings",
		Source:    registry.SourceScrapeJob,
		Path:      "test-actor",
		BatchSize: 10,
		Mapping: feature.Mapping{
			Encoding:  feature.EncodingFeature,
			NameField: "title",
			CodeField: "propertyCode",
		},
	}
}

func TestSeedListings(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	client := &scriptedClient{
		records: []json.RawMessage{
			listingRecord("p1", "Piso en Gracia"),
			listingRecord("p2", "Atico en Sants"),
		},
		statuses: []scrapejob.Status{scrapejob.StatusRunning, scrapejob.StatusSucceeded},
	}

	req := scrapejob.RunRequest{Country: "es", Location: "barcelona", Operation: "sale", PropertyType: "homes"}
	sum, seen, err := SeedListings(ctx, st, client, listingsDataset(t), req, nil, Config{},
		scrapejob.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Persisted)
	assert.True(t, seen["p1"])
	assert.True(t, seen["p2"])

	n, err := st.Count(ctx, store.KindListings)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSeedListingsResolvesMunicipality(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InTx(ctx, func(tx store.Session) error {
		return tx.CreateMunicipality(ctx, &model.Municipality{
			Code: "11012", Name: "Cádiz", ProvinceCode: "11",
		})
	}))

	client := &scriptedClient{
		records: []json.RawMessage{
			listingRecordIn("p1", "Casa en el casco antiguo", "CADIZ"),
			listingRecordIn("p2", "Villa con vistas", "Atlantis"),
		},
		statuses: []scrapejob.Status{scrapejob.StatusSucceeded},
	}

	req := scrapejob.RunRequest{Country: "es", Location: "cadiz", Operation: "sale", PropertyType: "homes"}
	sum, _, err := SeedListings(ctx, st, client, listingsDataset(t), req, nil, Config{},
		scrapejob.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Persisted)

	resolved, err := st.ListingsByMunicipality(ctx, "11012")
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "p1", resolved[0].SourceID)
	assert.Equal(t, "11012", resolved[0].MunicipalityCode)

	unresolved, err := st.ListingsByMunicipality(ctx, "")
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "p2", unresolved[0].SourceID)
}

func TestSeedListingsDeduplicates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	client := &scriptedClient{
		records: []json.RawMessage{
			listingRecord("p1", "Piso en Gracia"),
			listingRecord("p1", "Piso en Gracia (repost)"),
			listingRecord("p2", "Atico en Sants"),
		},
		statuses: []scrapejob.Status{scrapejob.StatusSucceeded},
	}

	// p2 was already accepted by a previous run.
	prior := map[string]bool{"p2": true}
	req := scrapejob.RunRequest{Location: "barcelona", Operation: "sale"}
	sum, seen, err := SeedListings(ctx, st, client, listingsDataset(t), req, prior, Config{},
		scrapejob.WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Persisted)
	assert.Equal(t, 2, sum.Skipped)

	// The input accumulator is not mutated; the returned one carries
	// old and new ids.
	assert.Equal(t, map[string]bool{"p2": true}, prior)
	assert.True(t, seen["p1"])
	assert.True(t, seen["p2"])
}

func TestSeedListingsFailedRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	client := &scriptedClient{
		statuses: []scrapejob.Status{scrapejob.StatusFailed},
	}

	_, _, err := SeedListings(ctx, st, client, listingsDataset(t), scrapejob.RunRequest{}, nil, Config{},
		scrapejob.WithPollInterval(time.Millisecond))
	require.Error(t, err)

	var stateErr *scrapejob.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, scrapejob.StatusFailed, stateErr.Status)

	n, err := st.Count(ctx, store.KindListings)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedListingsSkipsRecordWithoutGeometry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	client := &scriptedClient{
		records: []json.RawMessage{
			json.RawMessage(`{"properties":{"propertyCode":"p1","title":"No coords"}}`),
			listingRecord("p2", "Atico en Sants"),
		},
		statuses: []scrapejob.Status{scrapejob.StatusSucceeded},
	}

	sum, seen, err := SeedListings(ctx, st, client, listingsDataset(t), scrapejob.RunRequest{}, nil, Config{},
		scrapejob.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Persisted)
	assert.Equal(t, 1, sum.Skipped)
	assert.False(t, seen["p1"])
	assert.True(t, seen["p2"])
}
