package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeepsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Record(ctx, Entry{ID: fmt.Sprint(i), TopClass: "stain"}))
	}

	entries, err := m.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "4", entries[0].ID)
	assert.Equal(t, "2", entries[2].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())

	entries, err = m.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "4", entries[0].ID)
}

func TestEntryJSONAndEmptyList(t *testing.T) {
	raw, err := json.Marshal(Entry{ID: "a.png", TopClass: "stain", Confidence: 0.5})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"top_class":"stain"`)
	assert.Contains(t, string(raw), `"created_at"`)

	entries, err := NewMemory(5).Recent(context.Background(), 10)
	require.NoError(t, err)
	raw, err = json.Marshal(entries)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Record(context.Background(), Entry{ID: "x"}))
}

// TestPostgres runs against a real database when FABRIC_TEST_DATABASE_URL is set.
func TestPostgres(t *testing.T) {
	url := os.Getenv("FABRIC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FABRIC_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	p, err := NewPostgres(ctx, url)
	require.NoError(t, err)
	defer p.Close()

	none, err := p.Recent(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, none, "no rows is an empty list, not null")
	assert.Empty(t, none)

	e := Entry{
		ID:         uuid.NewString() + ".png",
		Filename:   "swatch.png",
		TopClass:   "hole",
		Confidence: 0.8,
		Labels:     []string{"hole: 0.80", "stain: 0.20"},
	}
	require.NoError(t, p.Record(ctx, e))
	require.NoError(t, p.Record(ctx, e), "re-recording the same id is a no-op")

	entries, err := p.Recent(ctx, 50)
	require.NoError(t, err)

	var found bool
	for _, got := range entries {
		if got.ID == e.ID {
			found = true
			assert.Equal(t, e.Labels, got.Labels)
			assert.Equal(t, "hole", got.TopClass)
		}
	}
	assert.True(t, found)
}
