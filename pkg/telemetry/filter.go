package telemetry

const DefaultSpikeThreshold = 20

// CarryCache holds the last accepted sampled frame of one device.
// It is not safe for concurrent use.
// With SignedCompare the spike test runs on recovered temperatures
// instead of raw bytes, so readings crossing zero are not rejected.
type CarryCache struct {
	Threshold     int
	SignedCompare bool

	frame  SampledFrame
	seeded bool
	spikes int
}

func NewCarryCache(threshold int) *CarryCache {
	return &CarryCache{Threshold: threshold}
}

func (c *CarryCache) Seeded() bool { return c.seeded }

// Frame returns a copy of the cached frame.
func (c *CarryCache) Frame() SampledFrame { return c.frame }

// Spikes counts readings rejected since the cache was created.
func (c *CarryCache) Spikes() int { return c.spikes }

// Seed stores s verbatim if the cache is still empty.
// It reports whether the cache was seeded by this call.
func (c *CarryCache) Seed(s SampledFrame) bool {
	if c.seeded {
		return false
	}
	c.frame = s
	c.seeded = true
	return true
}

// AcceptTemperature returns the physical temperature for sample index.
// A byte that differs from the cached one by more than Threshold is
// replaced by the cached value and is not stored, ok is false then.
// Accepted bytes are stored in the cache. An empty cache accepts value
// without storing it, seeding is left to Seed.
func (c *CarryCache) AcceptTemperature(index int, value byte) (temp int, ok bool) {
	if !c.seeded {
		return SignedTemperature(value), true
	}
	prev := c.frame[index]
	if c.delta(prev, value) > c.Threshold {
		c.spikes++
		return SignedTemperature(prev), false
	}
	c.frame[index] = value
	return SignedTemperature(value), true
}

func (c *CarryCache) delta(prev, value byte) int {
	if c.SignedCompare {
		return abs(SignedTemperature(value) - SignedTemperature(prev))
	}
	return abs(int(value) - int(prev))
}

// SignedTemperature recovers below zero readings which the controller
// sends as 255 minus the magnitude.
func SignedTemperature(b byte) int {
	if b > 200 && b < 255 {
		return int(b) - 255
	}
	return int(b)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
