package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"ingredient-catalog-service/internal/domain"
)

func TestEvent_Encode(t *testing.T) {
	ev := NewEvent(KindProduct, ActionUpdated, domain.PartitionAroma, "LAV-02")
	require.NotEmpty(t, ev.ID)
	assert.WithinDuration(t, time.Now(), ev.OccurredAt, time.Second)

	raw, err := ev.Encode()
	require.NoError(t, err)

	var decoded structpb.Struct
	require.NoError(t, protojson.Unmarshal(raw, &decoded))
	m := decoded.AsMap()
	assert.Equal(t, ev.ID, m["id"])
	assert.Equal(t, "product", m["kind"])
	assert.Equal(t, "updated", m["action"])
	assert.Equal(t, "aroma", m["partition"])
	assert.Equal(t, "LAV-02", m["key"])

	occurred, err := time.Parse(time.RFC3339Nano, m["occurred_at"].(string))
	require.NoError(t, err)
	assert.True(t, occurred.Equal(ev.OccurredAt))
}

func TestEvent_EncodeOmitsEmptyPartition(t *testing.T) {
	ev := NewEvent(KindContact, ActionCreated, "", "5f0c6b7e")
	raw, err := ev.Encode()
	require.NoError(t, err)

	var decoded structpb.Struct
	require.NoError(t, protojson.Unmarshal(raw, &decoded))
	_, has := decoded.AsMap()["partition"]
	assert.False(t, has)
}

func TestEvent_MessageKey(t *testing.T) {
	assert.Equal(t, "product:cosmetic:ARG-01", NewEvent(KindProduct, ActionCreated, domain.PartitionCosmetic, "ARG-01").MessageKey())
	assert.Equal(t, "sample_request:abc", NewEvent(KindSampleRequest, ActionCreated, "", "abc").MessageKey())
}

func TestParseBadge(t *testing.T) {
	b, err := ParseBadge("samples")
	require.NoError(t, err)
	assert.Equal(t, BadgeSamples, b)

	_, err = ParseBadge("orders")
	assert.ErrorIs(t, err, ErrUnknownBadge)
}

func TestToCount(t *testing.T) {
	n, err := toCount(nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = toCount("12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	_, err = toCount("twelve")
	assert.Error(t, err)
}

func TestNopImplementations(t *testing.T) {
	var p Publisher = NopPublisher{}
	p.Publish(context.Background(), NewEvent(KindProduct, ActionDeleted, domain.PartitionPerfume, "X"))
	assert.NoError(t, p.Close())

	var b Badges = NopBadges{}
	require.NoError(t, b.Increment(context.Background(), BadgeContacts))
	counts, err := b.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}
