package version

import "github.com/prometheus/client_golang/prometheus"

// NewCollector returns a constant gauge <namespace>_build_info set to 1
// and labelled with the build metadata.
func NewCollector(namespace string) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Build metadata of the running binary.",
		ConstLabels: prometheus.Labels{"version": Version, "commit": Commit, "built_at": BuildTime},
	}, func() float64 { return 1 })
}
