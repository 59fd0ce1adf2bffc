package version

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.Equal(t, "dev", Short())
	require.Equal(t, "dev (commit unknown, built unknown)", Full())
}

// TestAttachCobraVersionCommand prints the full and the short form.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		args []string
		want string
	}{
		{args: []string{"version"}, want: "tool " + Full() + "\n"},
		{args: []string{"version", "--short"}, want: "tool " + Short() + "\n"},
	} {
		root := &cobra.Command{Use: "tool"}
		AttachCobraVersionCommand(root)

		var out bytes.Buffer

		root.SetOut(&out)
		root.SetArgs(tc.args)

		require.NoError(t, root.Execute())
		require.Equal(t, tc.want, out.String())
	}
}

// TestNewCollector exposes the build metadata as a constant gauge.
func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector("demo"))

	expected := `# HELP demo_build_info Build metadata of the running binary.
# TYPE demo_build_info gauge
demo_build_info{built_at="` + BuildTime + `",commit="` + Commit + `",version="` + Version + `"} 1
`

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "demo_build_info"))
}
