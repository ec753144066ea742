package collector

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivenda-group/geoseed-cli/internal/feature"
)

func parseValue(raw json.RawMessage) (string, error) {
	s := string(raw)
	if strings.Contains(s, "bad") {
		return "", &feature.SkipError{Reason: "bad record", Raw: s}
	}
	if strings.Contains(s, "fatal") {
		return "", eris.New("unexpected failure")
	}
	return s, nil
}

func TestTypedSkipsAndCounts(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"i":0}`),
		json.RawMessage(`{"bad":1}`),
		json.RawMessage(`{"i":2}`),
		json.RawMessage(`{"bad":3}`),
	}

	src := TypedFromSlice(raws, 10, parseValue, "test-dataset")
	items, ok, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, src.Skipped())
}

func TestTypedNonSkipErrorAborts(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"i":0}`),
		json.RawMessage(`{"fatal":1}`),
	}

	src := TypedFromSlice(raws, 10, parseValue, "test-dataset")
	_, ok, err := src.Next(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
}

func TestTypedEmptyPageAfterAllSkipped(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"bad":0}`),
		json.RawMessage(`{"bad":1}`),
	}

	src := TypedFromSlice(raws, 10, parseValue, "test-dataset")
	items, ok, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, items)
	assert.Equal(t, 2, src.Skipped())
}
