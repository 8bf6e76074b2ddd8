// Package memprobe samples process memory when a client goes away, so that
// retention per connection shows up in metrics instead of being guessed at.
package memprobe

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
	"github.com/rs/zerolog"
)

const namespace = "keys2text_backend"

type Sample struct {
	ResidentBytes  uint64
	HeapInuseBytes uint64
}

type Probe struct {
	disconnects prometheus.Counter
	resident    prometheus.Gauge
	heapInuse   prometheus.Gauge

	residentFn func() (uint64, error)
	log        zerolog.Logger
}

func New(log zerolog.Logger) *Probe {
	return &Probe{
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_disconnects_total",
			Help:      "Disconnect beacons received from browsers.",
		}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "disconnect_resident_memory_bytes",
			Help:      "Resident memory of the process at the last disconnect.",
		}),
		heapInuse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "disconnect_heap_inuse_bytes",
			Help:      "Go heap in use at the last disconnect.",
		}),
		residentFn: residentMemory,
		log:        log,
	}
}

func (p *Probe) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.disconnects,
		p.resident,
		p.heapInuse,
	}
}

// Disconnect counts a disconnect and records the memory sample taken for it.
// It never triggers a collection.
func (p *Probe) Disconnect() Sample {
	p.disconnects.Inc()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s := Sample{
		HeapInuseBytes: ms.HeapInuse,
	}
	p.heapInuse.Set(float64(s.HeapInuseBytes))

	rss, err := p.residentFn()
	if err != nil {
		p.log.Debug().Err(err).Msg("reading resident memory")
	} else {
		s.ResidentBytes = rss
		p.resident.Set(float64(rss))
	}

	p.log.Info().
		Uint64("resident_bytes", s.ResidentBytes).
		Uint64("heap_inuse_bytes", s.HeapInuseBytes).
		Msg("user disconnected")

	return s
}

func residentMemory() (uint64, error) {
	proc, err := procfs.Self()
	if err != nil {
		return 0, err
	}

	stat, err := proc.Stat()
	if err != nil {
		return 0, err
	}

	return uint64(stat.ResidentMemory()), nil
}
