package sensor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ericogr/heating-panel-bridge/pkg/telemetry"
)

// FakeSource simulates the controller: slowly drifting temperatures,
// random actuator states, and the occasional not-ready block or sensor
// glitch so the filters get exercised.
type FakeSource struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	temps [5]int

	NotReadyRate float64
	GlitchRate   float64
}

func NewFakeSource() *FakeSource {
	return NewFakeSourceSeed(time.Now().UnixNano())
}

func NewFakeSourceSeed(seed int64) *FakeSource {
	return &FakeSource{
		rnd:          rand.New(rand.NewSource(seed)),
		temps:        [5]int{55, 45, 20, 30, 8},
		NotReadyRate: 0.05,
		GlitchRate:   0.05,
	}
}

func (f *FakeSource) ReadFrame() (telemetry.RawFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s telemetry.SampledFrame
	s[0] = byte(f.rnd.Intn(1 << 7))
	s[1] = byte(f.rnd.Intn(1 << 6))
	s[2] = byte(f.rnd.Intn(1 << 3))
	for i := range f.temps {
		f.temps[i] += f.rnd.Intn(3) - 1
		if f.temps[i] < -50 {
			f.temps[i] = -50
		}
		if f.temps[i] > 120 {
			f.temps[i] = 120
		}
		b := encodeTemperature(f.temps[i])
		if f.rnd.Float64() < f.GlitchRate {
			b = byte(f.rnd.Intn(200))
		}
		s[3+i] = b
	}
	if f.rnd.Float64() < f.NotReadyRate {
		s[f.rnd.Intn(len(s))] = telemetry.NotReady
	}

	var raw telemetry.RawFrame
	for i, b := range s {
		raw[i*2] = b
		raw[i*2+1] = ^b
	}
	return raw, nil
}

func (f *FakeSource) Close() error { return nil }

func encodeTemperature(t int) byte {
	if t < 0 {
		return byte(255 + t)
	}
	return byte(t)
}
