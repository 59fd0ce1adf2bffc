package console

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDetectOperator ensures hostname and username are detected and non-empty.
func TestDetectOperator(t *testing.T) {
	t.Parallel()

	o, err := DetectOperator()
	require.NoError(t, err)
	require.NotEmpty(t, o.Hostname)
	require.NotEmpty(t, o.Username)
	require.Equal(t, o.Username+"@"+o.Hostname, o.String())
}
