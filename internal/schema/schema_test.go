package schema_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/gateway/gatewaytest"
	"github.com/oshokin/secpi-console/internal/schema"
)

const zoneFields = `{
	"id": {"name": "ID", "visible": ["list"]},
	"name": {"name": "Name", "visible": ["list", "add", "update"]},
	"description": {"name": "Description", "default": "", "visible": ["list", "add", "update"]},
	"active_state": {"name": "Active", "type": "bool", "default": 1, "visible": ["update"]}
}`

func keys(fields []entity.FieldDescriptor) []string {
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		result = append(result, f.Key)
	}

	return result
}

func newSchema(t *testing.T) (*schema.Schema, *gatewaytest.Transport) {
	t.Helper()

	gw, transport, _ := gatewaytest.NewGateway(t)
	transport.Handle("/zones/fieldList", func(map[string]any) (*gateway.Envelope, error) {
		return &gateway.Envelope{Status: gateway.StatusSuccess, Data: json.RawMessage(zoneFields)}, nil
	})

	return schema.New(entity.Zone, gw), transport
}

// TestLoad_FiltersWithoutNetwork loads once and filters locally afterwards.
func TestLoad_FiltersWithoutNetwork(t *testing.T) {
	t.Parallel()

	s, transport := newSchema(t)
	require.False(t, s.Loaded())
	require.Empty(t, s.FieldsFor(entity.PurposeList))

	require.NoError(t, s.Load(context.Background()))
	require.True(t, s.Loaded())

	require.Equal(t, []string{"id", "name", "description"}, keys(s.FieldsFor(entity.PurposeList)))
	require.Equal(t, []string{"name", "description"}, keys(s.FieldsFor(entity.PurposeAdd)))
	require.Equal(t, []string{"name", "description", "active_state"}, keys(s.FieldsFor(entity.PurposeUpdate)))
	require.Len(t, s.Fields(), 4)

	require.Len(t, transport.CallsTo("/zones/fieldList"), 1)
}

// TestReload_CallsAgain issues one call per reload.
func TestReload_CallsAgain(t *testing.T) {
	t.Parallel()

	s, transport := newSchema(t)

	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Reload(context.Background()))
	require.Len(t, transport.CallsTo("/zones/fieldList"), 2)
}

// TestLoad_FailureKeepsCache keeps the previous descriptors on failure.
func TestLoad_FailureKeepsCache(t *testing.T) {
	t.Parallel()

	s, transport := newSchema(t)
	require.NoError(t, s.Load(context.Background()))

	transport.Refuse("/zones/fieldList", "Database error")

	err := s.Load(context.Background())
	require.ErrorIs(t, err, gateway.ErrApplication)
	require.True(t, s.Loaded())
	require.Len(t, s.Fields(), 4)
}

// TestDefaults collects declared defaults of visible fields.
func TestDefaults(t *testing.T) {
	t.Parallel()

	s, _ := newSchema(t)
	require.NoError(t, s.Load(context.Background()))

	require.Equal(t, entity.Entity{"description": ""}, s.Defaults(entity.PurposeAdd))
	require.Equal(t, entity.Entity{"description": "", "active_state": float64(1)}, s.Defaults(entity.PurposeUpdate))
}
