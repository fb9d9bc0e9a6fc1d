package telemetry

import (
	"time"

	"github.com/juju/errors"
)

const (
	MeasurementTemperatures = "temperatures"
	MeasurementOutput       = "output"
	MeasurementInput        = "input"

	TagRoom     = "room"
	DefaultRoom = "Technischeruimte"
)

// Batch is one tagged measurement ready for a time-series sink.
// A zero Time lets the sink assign its own timestamp.
type Batch struct {
	Measurement string                 `json:"measurement"`
	Tags        map[string]string      `json:"tags"`
	Fields      map[string]interface{} `json:"fields"`
	Time        time.Time              `json:"time,omitempty"`
}

type field struct{ channel, display string }

var batchLayout = []struct {
	measurement string
	fields      []field
}{
	{MeasurementTemperatures, []field{
		{"boilertank", "boilertank"},
		{"cv tank", "cvTank"},
		{"houtkachel", "houtkachel"},
		{"zonneboiler", "zonneboiler"},
		{"buiten", "buiten"},
	}},
	{MeasurementOutput, []field{
		{"cv pomp", "cvPomp"},
		{"houtkachel pomp", "houtkachelPomp"},
		{"pelletketel", "pelletketel"},
		{"elektrische verwarmingselement", "elektrischeVerwarmingselement"},
		{"secundairePomp", "secundairePomp"},
		{"mainPomp", "mainPomp"},
		{"driewegklep", "driewegklep"},
		{"dompel thermostaat", "dompelThermostaat"},
		{"kamer thermostaat", "kamerThermostaat"},
		{"flowswitch", "flowswitch"},
	}},
	{MeasurementInput, []field{
		{"handmatigDriewegklep", "Handmatig driewegklep"},
		{"boilertankVerwarmen", "Boilertank verwarmen"},
		{"beidetanksVerwarmen", "Beide tanks verwarmen"},
		{"ignorePelletfurnace", "Pelletketel onderhoud"},
		{"elektrischelement", "Elektrischelement"},
		{"zomerstand", "Zomerstand"},
	}},
}

// BuildBatches groups readings into the temperatures, output and input
// measurements, in that order. A channel missing from readings is a
// NotFound error and no batch is returned.
func BuildBatches(readings ReadingSet, room string) ([]Batch, error) {
	out := make([]Batch, 0, len(batchLayout))
	for _, l := range batchLayout {
		b := Batch{
			Measurement: l.measurement,
			Tags:        map[string]string{TagRoom: room},
			Fields:      make(map[string]interface{}, len(l.fields)),
		}
		for _, f := range l.fields {
			v, ok := readings[f.channel]
			if !ok {
				return nil, errors.NotFoundf("measurement=%s channel %q", l.measurement, f.channel)
			}
			b.Fields[f.display] = v
		}
		out = append(out, b)
	}
	return out, nil
}
