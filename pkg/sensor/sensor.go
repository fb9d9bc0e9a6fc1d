package sensor

import (
	"github.com/ericogr/heating-panel-bridge/pkg/config"
	"github.com/ericogr/heating-panel-bridge/pkg/telemetry"
	"github.com/juju/errors"
)

// Source delivers one status block of the controller per call.
// Errors are transport failures, callers retry without decoding.
type Source interface {
	ReadFrame() (telemetry.RawFrame, error)
	Close() error
}

func New(cfg config.Config) (Source, error) {
	switch cfg.SensorType {
	case config.SensorReal:
		return NewController(cfg.I2C)
	case config.SensorSimulation:
		return NewFakeSource(), nil
	}
	return nil, errors.NotSupportedf("sensor type %q", cfg.SensorType)
}
