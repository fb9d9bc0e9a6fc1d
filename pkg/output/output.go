package output

import "github.com/ericogr/heating-panel-bridge/pkg/telemetry"

// Output is a sink for measurement batches. Publish writes each batch
// separately, in order, and stops at the first failure.
type Output interface {
	Publish([]telemetry.Batch) error
	Close() error
}

// helper constructors are in subpackages
