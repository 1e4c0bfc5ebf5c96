package feedpb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mkraev/venuetrace/internal/models"
)

func TestEncodeDecodeBatch(t *testing.T) {
	start := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	in := []models.ProblematicEvent{
		{EventID: "e1", VenuePayload: []byte{0xde, 0xad}, Start: start, End: start.Add(time.Hour)},
		{EventID: "e2", VenuePayload: []byte("qr"), Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)},
	}

	out, err := DecodeBatch(EncodeBatch(in))
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "e1", out[0].EventID)
	require.Equal(t, []byte{0xde, 0xad}, out[0].VenuePayload)
	require.True(t, out[0].Start.Equal(start))
	require.True(t, out[1].End.Equal(start.Add(3*time.Hour)))
}

func TestDecodeBatch_Empty(t *testing.T) {
	out, err := DecodeBatch(nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestDecodeBatch_SkipsUnknownFields(t *testing.T) {
	start := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	ev := models.ProblematicEvent{EventID: "e1", VenuePayload: []byte("p"), Start: start, End: start.Add(time.Hour)}

	raw := EncodeBatch([]models.ProblematicEvent{ev})
	// A future server may append extra top-level fields.
	raw = protowire.AppendTag(raw, 7, protowire.VarintType)
	raw = protowire.AppendVarint(raw, 42)

	out, err := DecodeBatch(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "e1", out[0].EventID)
}

func TestDecodeBatch_Truncated(t *testing.T) {
	start := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	ev := models.ProblematicEvent{EventID: "e1", VenuePayload: []byte("p"), Start: start, End: start.Add(time.Hour)}

	raw := EncodeBatch([]models.ProblematicEvent{ev})
	_, err := DecodeBatch(raw[:len(raw)-3])
	require.Error(t, err)
}

func TestDecodeBatch_MissingID(t *testing.T) {
	var msg []byte
	msg = protowire.AppendTag(msg, eventFieldPayload, protowire.BytesType)
	msg = protowire.AppendBytes(msg, []byte("p"))

	var raw []byte
	raw = protowire.AppendTag(raw, batchFieldEvents, protowire.BytesType)
	raw = protowire.AppendBytes(raw, msg)

	_, err := DecodeBatch(raw)
	require.Error(t, err)
}
