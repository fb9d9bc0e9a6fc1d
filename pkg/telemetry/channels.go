package telemetry

import "github.com/juju/errors"

type Kind int

const (
	Digital Kind = iota
	Temperature
)

// Channel describes how one SampledFrame position is decoded.
// Digital channels carry a group of bit-packed signals, Temperature
// channels carry a single sensor.
// Drop is the number of leading (most significant) bits ignored for a
// digital group.
type Channel struct {
	Kind  Kind
	Group string
	Drop  int
	Names []string
	Name  string
}

const (
	GroupOutputs     = "outputs"
	GroupButtons     = "buttons"
	GroupInputs      = "inputs"
	GroupTemperature = "temperature"
)

var (
	OutputNames = []string{
		"cv pomp",
		"houtkachel pomp",
		"pelletketel",
		"elektrische verwarmingselement",
		"secundairePomp",
		"mainPomp",
		"driewegklep",
	}
	ButtonNames = []string{
		"handmatigDriewegklep",
		"boilertankVerwarmen",
		"beidetanksVerwarmen",
		"ignorePelletfurnace",
		"elektrischelement",
		"zomerstand",
	}
	InputNames = []string{
		"dompel thermostaat",
		"kamer thermostaat",
		"flowswitch",
	}
	TemperatureNames = []string{
		"boilertank",
		"cv tank",
		"houtkachel",
		"zonneboiler",
		"buiten",
	}
)

const firstTemperatureIndex = 3

var channelMap = [SampledFrameSize]Channel{
	{Kind: Digital, Group: GroupOutputs, Drop: 1, Names: OutputNames},
	{Kind: Digital, Group: GroupButtons, Drop: 2, Names: ButtonNames},
	{Kind: Digital, Group: GroupInputs, Drop: 5, Names: InputNames},
	{Kind: Temperature, Group: GroupTemperature, Name: TemperatureNames[0]},
	{Kind: Temperature, Group: GroupTemperature, Name: TemperatureNames[1]},
	{Kind: Temperature, Group: GroupTemperature, Name: TemperatureNames[2]},
	{Kind: Temperature, Group: GroupTemperature, Name: TemperatureNames[3]},
	{Kind: Temperature, Group: GroupTemperature, Name: TemperatureNames[4]},
}

// Classify returns the decode rule for a SampledFrame position.
func Classify(index int) (Channel, error) {
	if index < 0 || index >= len(channelMap) {
		return Channel{}, errors.NotValidf("channel index %d", index)
	}
	return channelMap[index], nil
}

// expandBits drops the leading bits of b and returns the rest least
// significant first, so bit v maps to names[v].
func expandBits(b byte, drop int) []bool {
	n := 8 - drop
	out := make([]bool, n)
	for v := 0; v < n; v++ {
		out[v] = b>>uint(v)&1 == 1
	}
	return out
}
