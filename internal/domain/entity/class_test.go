package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseClass accepts singular and plural names and rejects the rest.
func TestParseClass(t *testing.T) {
	t.Parallel()

	c, err := ParseClass("zones")
	require.NoError(t, err)
	require.Equal(t, Zone, c)

	c, err = ParseClass(" Alarm ")
	require.NoError(t, err)
	require.Equal(t, Alarm, c)

	_, err = ParseClass("toasters")
	require.ErrorIs(t, err, ErrUnknownClass)

	for _, c := range Classes() {
		parsed, err := ParseClass(c.Collection())
		require.NoError(t, err)
		require.Equal(t, c, parsed)
	}
}

// TestEndpoints checks the path families built from the registry.
func TestEndpoints(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/zones/list", Zone.Endpoint(OpList))
	require.Equal(t, "/alarms/ackAll", Alarm.Endpoint(OpAckAll))
	require.Equal(t, "/setupszones/add", SetupsZones.Endpoint(OpAdd))
	require.Equal(t, "setup_id", SetupsZones.LeftKey())
	require.Equal(t, "zone_id", SetupsZones.RightKey())
	require.Equal(t,
		map[string]any{"worker_id": int64(1), "action_id": int64(2)},
		WorkersActions.Payload(Record{LeftID: 1, RightID: 2}),
	)
	require.False(t, Class(0).Valid())
	require.Equal(t, "Class(0)", Class(0).String())
}

// TestParseRelation resolves registered pairs only.
func TestParseRelation(t *testing.T) {
	t.Parallel()

	rel, err := ParseRelation("setup", "zone")
	require.NoError(t, err)
	require.Equal(t, SetupsZones, rel)

	_, err = ParseRelation("zone", "setup")
	require.ErrorIs(t, err, ErrUnknownRelation)

	_, err = ParseRelation("zone", "toaster")
	require.ErrorIs(t, err, ErrUnknownClass)
}
