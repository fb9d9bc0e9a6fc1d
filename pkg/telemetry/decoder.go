package telemetry

// ReadingSet maps channel names to decoded values: bool for digital
// signals, int for temperatures in degrees.
type ReadingSet map[string]interface{}

// Spike is a temperature reading replaced by its carried-forward value.
type Spike struct {
	Name     string
	Raw      byte
	Previous int
}

// Decoder turns raw status blocks of a single device into readings.
// One Decoder per device, it must not be used from several goroutines.
type Decoder struct {
	Cache *CarryCache

	lastSpikes []Spike
}

func NewDecoder(cache *CarryCache) *Decoder {
	if cache == nil {
		cache = NewCarryCache(DefaultSpikeThreshold)
	}
	return &Decoder{Cache: cache}
}

// Decode returns false for frames carrying the NotReady sentinel, the
// cache is left untouched then.
func (d *Decoder) Decode(raw RawFrame) (ReadingSet, bool) {
	s, ok := Validate(raw)
	if !ok {
		return nil, false
	}
	d.Cache.Seed(s)
	d.lastSpikes = nil

	readings := make(ReadingSet, len(OutputNames)+len(ButtonNames)+len(InputNames)+len(TemperatureNames))
	for i, b := range s {
		ch, err := Classify(i)
		if err != nil {
			// channelMap covers every sampled index
			panic(err)
		}
		switch ch.Kind {
		case Digital:
			for v, on := range expandBits(b, ch.Drop) {
				readings[ch.Names[v]] = on
			}
		case Temperature:
			temp, accepted := d.Cache.AcceptTemperature(i, b)
			if !accepted {
				d.lastSpikes = append(d.lastSpikes, Spike{Name: ch.Name, Raw: b, Previous: temp})
			}
			readings[ch.Name] = temp
		}
	}
	return readings, true
}

// Spikes lists the readings replaced during the last accepted Decode.
func (d *Decoder) Spikes() []Spike { return d.lastSpikes }
