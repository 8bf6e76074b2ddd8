package memprobe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, p *Probe) map[string]float64 {
	t.Helper()

	reg := prometheus.NewRegistry()
	reg.MustRegister(p.Collectors()...)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}

	return values
}

func TestDisconnect(t *testing.T) {
	var buf bytes.Buffer

	p := New(zerolog.New(&buf))
	p.residentFn = func() (uint64, error) { return 52428800, nil }

	s := p.Disconnect()
	p.Disconnect()

	assert.Equal(t, uint64(52428800), s.ResidentBytes)
	assert.Greater(t, s.HeapInuseBytes, uint64(0))

	values := gather(t, p)
	assert.Equal(t, 2.0, values["keys2text_backend_user_disconnects_total"])
	assert.Equal(t, 52428800.0, values["keys2text_backend_disconnect_resident_memory_bytes"])
	assert.Greater(t, values["keys2text_backend_disconnect_heap_inuse_bytes"], 0.0)
	assert.Contains(t, buf.String(), `"resident_bytes":52428800`)
}

func TestDisconnectWithoutProcfs(t *testing.T) {
	p := New(zerolog.Nop())
	p.residentFn = func() (uint64, error) { return 0, errors.New("no /proc") }

	s := p.Disconnect()

	assert.Equal(t, uint64(0), s.ResidentBytes)

	values := gather(t, p)
	assert.Equal(t, 1.0, values["keys2text_backend_user_disconnects_total"])
	assert.Equal(t, 0.0, values["keys2text_backend_disconnect_resident_memory_bytes"])
}
