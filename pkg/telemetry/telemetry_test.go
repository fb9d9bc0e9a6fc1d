package telemetry

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameOf builds a raw frame with the given sampled bytes on even
// positions and a check byte of 0x5a on odd positions.
func frameOf(sampled ...byte) RawFrame {
	var raw RawFrame
	for i := range raw {
		if i%2 == 1 {
			raw[i] = 0x5a
		}
	}
	for i, b := range sampled {
		raw[i*2] = b
	}
	return raw
}

func TestParseRawFrame(t *testing.T) {
	raw, err := ParseRawFrame([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	require.NoError(t, err)
	assert.Equal(t, SampledFrame{1, 3, 5, 7, 9, 11, 13, 15}, raw.Sample())

	_, err = ParseRawFrame([]byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err), "err=%v", err)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		index int
		kind  Kind
		group string
		drop  int
		names int
		name  string
	}{
		{0, Digital, GroupOutputs, 1, 7, ""},
		{1, Digital, GroupButtons, 2, 6, ""},
		{2, Digital, GroupInputs, 5, 3, ""},
		{3, Temperature, GroupTemperature, 0, 0, "boilertank"},
		{4, Temperature, GroupTemperature, 0, 0, "cv tank"},
		{5, Temperature, GroupTemperature, 0, 0, "houtkachel"},
		{6, Temperature, GroupTemperature, 0, 0, "zonneboiler"},
		{7, Temperature, GroupTemperature, 0, 0, "buiten"},
	}
	for _, c := range cases {
		ch, err := Classify(c.index)
		require.NoError(t, err)
		assert.Equal(t, c.kind, ch.Kind, "index=%d", c.index)
		assert.Equal(t, c.group, ch.Group, "index=%d", c.index)
		assert.Equal(t, c.drop, ch.Drop, "index=%d", c.index)
		assert.Len(t, ch.Names, c.names, "index=%d", c.index)
		assert.Equal(t, c.name, ch.Name, "index=%d", c.index)
		if ch.Kind == Digital {
			assert.Equal(t, 8-ch.Drop, len(ch.Names), "index=%d bits must match names", c.index)
		}
	}

	for _, i := range []int{-1, 8} {
		_, err := Classify(i)
		assert.True(t, errors.IsNotValid(err), "index=%d err=%v", i, err)
	}
}

func TestValidateRejectsSentinel(t *testing.T) {
	for i := 0; i < SampledFrameSize; i++ {
		var sampled [SampledFrameSize]byte
		sampled[i] = NotReady
		_, ok := Validate(frameOf(sampled[:]...))
		assert.False(t, ok, "sentinel at sampled index %d", i)
	}

	// check bytes are ignored
	raw := frameOf(1, 2, 3, 4, 5, 6, 7, 8)
	for i := 1; i < RawFrameSize; i += 2 {
		raw[i] = NotReady
	}
	s, ok := Validate(raw)
	assert.True(t, ok)
	assert.Equal(t, SampledFrame{1, 2, 3, 4, 5, 6, 7, 8}, s)
}

func TestSignedTemperature(t *testing.T) {
	cases := []struct {
		in   byte
		want int
	}{
		{0, 0},
		{21, 21},
		{199, 199},
		{200, 200},
		{201, -54},
		{230, -25},
		{254, -1},
		{255, 255},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SignedTemperature(c.in), "byte=%d", c.in)
	}
}

func TestDecodeOutputsAllCombinations(t *testing.T) {
	for b := 0; b < 128; b++ {
		for _, top := range []byte{0, 0x80} {
			d := NewDecoder(nil)
			readings, ok := d.Decode(frameOf(byte(b) | top))
			require.True(t, ok)
			for v, name := range OutputNames {
				assert.Equal(t, b>>uint(v)&1 == 1, readings[name], "byte=%08b channel=%s", byte(b)|top, name)
			}
		}
	}
}

func TestDecodeDigitalGroups(t *testing.T) {
	d := NewDecoder(nil)
	readings, ok := d.Decode(frameOf(0x05, 0x41, 0xfa))
	require.True(t, ok)

	assert.Equal(t, true, readings["cv pomp"])
	assert.Equal(t, false, readings["houtkachel pomp"])
	assert.Equal(t, true, readings["pelletketel"])
	for _, name := range OutputNames[3:] {
		assert.Equal(t, false, readings[name], name)
	}

	// 0x41: bit 6 is dropped, only bit 0 remains
	assert.Equal(t, true, readings["handmatigDriewegklep"])
	for _, name := range ButtonNames[1:] {
		assert.Equal(t, false, readings[name], name)
	}

	// 0xfa = 11111010: top 5 dropped, 010 reversed
	assert.Equal(t, false, readings["dompel thermostaat"])
	assert.Equal(t, true, readings["kamer thermostaat"])
	assert.Equal(t, false, readings["flowswitch"])
}

func TestDecodeRejectedLeavesCache(t *testing.T) {
	d := NewDecoder(nil)
	_, ok := d.Decode(frameOf(0, 0, 0, 255))
	assert.False(t, ok)
	assert.False(t, d.Cache.Seeded())

	_, ok = d.Decode(frameOf(1, 2, 3, 40, 41, 42, 43, 44))
	require.True(t, ok)
	before := d.Cache.Frame()

	readings, ok := d.Decode(frameOf(0, 0, 0, 41, 255, 42, 43, 44))
	assert.False(t, ok)
	assert.Nil(t, readings)
	assert.Equal(t, before, d.Cache.Frame())
}

func TestDecodeFirstFrameThenSpike(t *testing.T) {
	d := NewDecoder(NewCarryCache(DefaultSpikeThreshold))

	readings, ok := d.Decode(frameOf(10, 0, 0, 0, 0, 0, 0, 0))
	require.True(t, ok)
	assert.Equal(t, SampledFrame{10, 0, 0, 0, 0, 0, 0, 0}, d.Cache.Frame())
	// 10 = 0001010
	assert.Equal(t, true, readings["houtkachel pomp"])
	assert.Equal(t, true, readings["elektrische verwarmingselement"])
	for _, name := range ButtonNames {
		assert.Equal(t, false, readings[name], name)
	}
	for _, name := range InputNames {
		assert.Equal(t, false, readings[name], name)
	}
	for _, name := range TemperatureNames {
		assert.Equal(t, 0, readings[name], name)
	}
	assert.Empty(t, d.Spikes())

	readings, ok = d.Decode(frameOf(10, 0, 0, 40, 0, 0, 0, 0))
	require.True(t, ok)
	assert.Equal(t, 0, readings["boilertank"])
	assert.Equal(t, byte(0), d.Cache.Frame()[3])
	assert.Equal(t, []Spike{{Name: "boilertank", Raw: 40, Previous: 0}}, d.Spikes())
	assert.Equal(t, 1, d.Cache.Spikes())
}

func TestDecodeSpikeInvariant(t *testing.T) {
	d := NewDecoder(nil)
	frames := [][]byte{
		{0, 0, 0, 50, 60, 20, 10, 5},
		{0, 0, 0, 70, 61, 90, 10, 3},
		{0, 0, 0, 65, 62, 30, 10, 0},
		{0, 0, 0, 60, 200, 35, 10, 254},
		{0, 0, 0, 55, 63, 40, 10, 240},
	}
	for i, f := range frames {
		prev := d.Cache.Frame()
		first := !d.Cache.Seeded()
		readings, ok := d.Decode(frameOf(f...))
		require.True(t, ok)
		if first {
			continue
		}
		for idx := firstTemperatureIndex; idx < SampledFrameSize; idx++ {
			got := readings[TemperatureNames[idx-firstTemperatureIndex]].(int)
			diff := abs(got - int(prev[idx]))
			assert.LessOrEqual(t, diff, DefaultSpikeThreshold, "frame=%d index=%d", i, idx)
		}
	}

	// 0 -> 254 is a jump of 254 raw units, the old value is kept
	assert.Equal(t, byte(0), d.Cache.Frame()[7])
	assert.Equal(t, byte(63), d.Cache.Frame()[4])
	assert.Equal(t, byte(40), d.Cache.Frame()[5])
}

func TestAcceptTemperatureCompareDomain(t *testing.T) {
	cases := []struct {
		prev, value byte
		signed      bool
		want        int
		ok          bool
	}{
		{200, 201, false, -54, true},
		{10, 250, false, 10, false},
		{0, 254, false, 0, false},
		{230, 250, false, -5, true},
		{50, 70, false, 70, true},
		{50, 71, false, 50, false},
		{200, 201, true, 200, false},
		{10, 250, true, -5, true},
		{0, 254, true, -1, true},
	}
	for _, c := range cases {
		cache := NewCarryCache(DefaultSpikeThreshold)
		cache.SignedCompare = c.signed
		cache.Seed(SampledFrame{0, 0, 0, c.prev})
		temp, ok := cache.AcceptTemperature(3, c.value)
		assert.Equal(t, c.want, temp, "prev=%d value=%d signed=%v", c.prev, c.value, c.signed)
		assert.Equal(t, c.ok, ok, "prev=%d value=%d signed=%v", c.prev, c.value, c.signed)
		want := c.prev
		if c.ok {
			want = c.value
		}
		assert.Equal(t, want, cache.Frame()[3], "prev=%d value=%d signed=%v", c.prev, c.value, c.signed)
	}
}

func TestDecodeSignedCompareCrossesZero(t *testing.T) {
	cache := NewCarryCache(DefaultSpikeThreshold)
	cache.SignedCompare = true
	d := NewDecoder(cache)
	_, ok := d.Decode(frameOf(0, 0, 0, 20, 20, 20, 20, 1))
	require.True(t, ok)
	readings, ok := d.Decode(frameOf(0, 0, 0, 20, 20, 20, 20, 252))
	require.True(t, ok)
	assert.Equal(t, -3, readings["buiten"])
	assert.Equal(t, byte(252), d.Cache.Frame()[7])
	assert.Empty(t, d.Spikes())
}

func TestSpikesNotOverwrittenByNextDecode(t *testing.T) {
	d := NewDecoder(nil)
	_, ok := d.Decode(frameOf(0, 0, 0, 20, 20, 20, 20, 20))
	require.True(t, ok)
	_, ok = d.Decode(frameOf(0, 0, 0, 90, 20, 20, 20, 20))
	require.True(t, ok)
	first := d.Spikes()
	_, ok = d.Decode(frameOf(0, 0, 0, 20, 90, 20, 20, 20))
	require.True(t, ok)

	assert.Equal(t, []Spike{{Name: "boilertank", Raw: 90, Previous: 20}}, first)
	assert.Equal(t, []Spike{{Name: "cv tank", Raw: 90, Previous: 20}}, d.Spikes())
}

func TestDecodeIdempotentWithFreshCache(t *testing.T) {
	raw := frameOf(0x33, 0x12, 0x05, 60, 45, 80, 30, 250)
	a, ok := NewDecoder(nil).Decode(raw)
	require.True(t, ok)
	b, ok := NewDecoder(nil).Decode(raw)
	require.True(t, ok)
	assert.Equal(t, a, b)
	assert.Equal(t, -5, a["buiten"])
}

func TestAcceptTemperatureThreshold(t *testing.T) {
	c := NewCarryCache(20)
	c.Seed(SampledFrame{0, 0, 0, 50})

	temp, ok := c.AcceptTemperature(3, 70)
	assert.True(t, ok)
	assert.Equal(t, 70, temp)

	temp, ok = c.AcceptTemperature(3, 91)
	assert.False(t, ok)
	assert.Equal(t, 70, temp)
	assert.Equal(t, byte(70), c.Frame()[3])

	c = NewCarryCache(0)
	temp, ok = c.AcceptTemperature(4, 250)
	assert.True(t, ok, "unseeded cache accepts the first value")
	assert.Equal(t, -5, temp)
	assert.False(t, c.Seeded(), "only Seed fills the cache")

	// a later first frame still seeds every channel
	assert.True(t, c.Seed(SampledFrame{0, 0, 0, 60, 70, 80, 90, 100}))
	temp, ok = c.AcceptTemperature(7, 100)
	assert.True(t, ok)
	assert.Equal(t, 100, temp)
}

func TestBuildBatches(t *testing.T) {
	d := NewDecoder(nil)
	readings, ok := d.Decode(frameOf(0x41, 0x20, 0x04, 55, 48, 21, 30, 253))
	require.True(t, ok)

	batches, err := BuildBatches(readings, DefaultRoom)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	assert.Equal(t, MeasurementTemperatures, batches[0].Measurement)
	assert.Equal(t, MeasurementOutput, batches[1].Measurement)
	assert.Equal(t, MeasurementInput, batches[2].Measurement)
	for _, b := range batches {
		assert.Equal(t, map[string]string{"room": "Technischeruimte"}, b.Tags)
	}

	assert.Equal(t, map[string]interface{}{
		"boilertank":  55,
		"cvTank":      48,
		"houtkachel":  21,
		"zonneboiler": 30,
		"buiten":      -2,
	}, batches[0].Fields)
	assert.Len(t, batches[1].Fields, 10)
	assert.Equal(t, true, batches[1].Fields["cvPomp"])
	assert.Equal(t, true, batches[1].Fields["driewegklep"])
	assert.Equal(t, true, batches[1].Fields["flowswitch"])
	assert.Equal(t, false, batches[1].Fields["kamerThermostaat"])
	assert.Len(t, batches[2].Fields, 6)
	assert.Equal(t, true, batches[2].Fields["Zomerstand"])
	assert.Equal(t, false, batches[2].Fields["Handmatig driewegklep"])
}

func TestBuildBatchesMissingChannel(t *testing.T) {
	readings, ok := NewDecoder(nil).Decode(frameOf(0, 0, 0, 20, 20, 20, 20, 20))
	require.True(t, ok)
	delete(readings, ButtonNames[2])

	batches, err := BuildBatches(readings, DefaultRoom)
	require.Error(t, err)
	assert.Nil(t, batches)
	assert.True(t, errors.IsNotFound(err), "err=%v", err)
	assert.Contains(t, err.Error(), "beidetanksVerwarmen")
}
