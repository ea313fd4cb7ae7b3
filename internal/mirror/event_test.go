package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventHeaderCoversAllCombinations(t *testing.T) {
	models := map[string]EntityKind{
		"Node": KindNode, "Allocation": KindAllocation, "Egg": KindEgg, "Server": KindServer, "User": KindUser,
	}
	verbs := map[string]Operation{"created": OpCreate, "updated": OpUpdate, "deleted": OpDelete}

	seen := 0
	for model, kind := range models {
		for verb, op := range verbs {
			header := "eloquent." + verb + `: App\Models\` + model
			got, ok := ParseEventHeader(header)
			require.True(t, ok, header)
			assert.Equal(t, EventType{Kind: kind, Op: op}, got, header)
			seen++
		}
	}
	assert.Equal(t, 15, seen)
}

func TestParseEventHeaderRejectsUnknown(t *testing.T) {
	for _, h := range []string{
		"",
		"eloquent.restored: App\\Models\\Server",
		"eloquent.created: App\\Models\\Database",
		"eloquent.created App\\Models\\Server",
		"created: App\\Models\\Server",
	} {
		_, ok := ParseEventHeader(h)
		assert.False(t, ok, h)
	}
}

func TestEggUpdatedMapsToUpdate(t *testing.T) {
	got, ok := ParseEventHeader(`eloquent.updated: App\Models\Egg`)
	require.True(t, ok)
	assert.Equal(t, "egg.update", got.String())
}

func TestParseEventTypeRoundTrip(t *testing.T) {
	ev := EventType{Kind: KindAllocation, Op: OpDelete}
	got, ok := ParseEventType("allocation", "delete")
	require.True(t, ok)
	assert.Equal(t, ev, got)

	_, ok = ParseEventType("database", "create")
	assert.False(t, ok)
}

func TestExtractRecord(t *testing.T) {
	rec, err := ExtractRecord([]byte(` [{"id":1},{"id":2}] `))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(rec))

	rec, err = ExtractRecord([]byte(`{"id":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3}`, string(rec))

	for _, body := range []string{``, `[]`, `[1]`, `"x"`, `{"id":`} {
		_, err := ExtractRecord([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedPayload, body)
	}
}
