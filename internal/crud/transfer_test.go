package crud

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/secpi-console/internal/domain/entity"
)

func TestDecodeRecords(t *testing.T) {
	t.Parallel()

	records, err := DecodeRecords(`[
		{"type": "zones", "data": {"id": 1, "name": "Hall"}},
		{"type": null, "data": {"name": "Nope"}},
		{"type": "sensors", "data": null}
	]`)
	require.NoError(t, err)
	require.Equal(t, []Record{{Type: "zones", Data: entity.Entity{"id": float64(1), "name": "Hall"}}}, records)

	records, err = DecodeRecords(`null`)
	require.NoError(t, err)
	require.Empty(t, records)

	_, err = DecodeRecords(`{"type": "zones"}`)
	require.ErrorIs(t, err, errImportNotList)

	_, err = DecodeRecords(`[{"type": 5, "data": {}}]`)
	require.Error(t, err)
}

func TestEncodeRecords(t *testing.T) {
	t.Parallel()

	text, err := EncodeRecords(entity.Sensor, []entity.Entity{{"id": float64(2), "name": "PIR"}})
	require.NoError(t, err)
	require.Equal(t, `[
  {
    "type": "sensors",
    "data": {
      "id": 2,
      "name": "PIR"
    }
  }
]`, text)

	text, err = EncodeRecords(entity.Sensor, nil)
	require.NoError(t, err)
	require.Equal(t, "[]", text)
}
