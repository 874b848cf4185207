package outbuf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Output builder metrics, shared by every Builder in the process.
var (
	mBuildersOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "outbuf",
		Name:      "builders_open",
		Help:      "Number of builders that have not been closed",
	})
	mFragments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "outbuf",
		Name:      "fragments_total",
		Help:      "Number of fragments created",
	})
	mSpills = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "outbuf",
		Name:      "spills_total",
		Help:      "Number of fragments moved from memory to scratch storage",
	})
	mTrims = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "outbuf",
		Name:      "trims_total",
		Help:      "Number of finished fragments trimmed in memory",
	})
	mBlocksWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "outbuf",
		Name:      "blocks_written_total",
		Help:      "Number of scratch blocks allocated",
	})
	mAssembledBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "outbuf",
		Name:      "assembled_bytes_total",
		Help:      "Bytes emitted to sinks by Close",
	})
	mAssembleDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "outbuf",
		Name:      "assemble_duration_seconds",
		Help:      "Duration of the last assembly in seconds",
	})
)
