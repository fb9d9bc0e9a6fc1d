package sensor

import (
	"github.com/ericogr/heating-panel-bridge/pkg/config"
	"github.com/ericogr/heating-panel-bridge/pkg/telemetry"
	"github.com/juju/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

type txer interface {
	Tx(w, r []byte) error
}

// Controller reads the status block of the heating controller, an I2C
// slave answering a block read at register 0 with 16 bytes.
type Controller struct {
	dev      txer
	bus      i2c.BusCloser
	register byte
}

func NewController(cfg config.I2CConfig) (Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "host init")
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, errors.Annotatef(err, "open i2c bus=%s", cfg.Bus)
	}
	dev := &i2c.Dev{Addr: uint16(cfg.Address), Bus: bus}
	return &Controller{dev: dev, bus: bus, register: byte(cfg.Register)}, nil
}

func (c *Controller) ReadFrame() (telemetry.RawFrame, error) {
	buf := make([]byte, telemetry.RawFrameSize)
	if err := c.dev.Tx([]byte{c.register}, buf); err != nil {
		return telemetry.RawFrame{}, errors.Annotate(err, "read block")
	}
	return telemetry.ParseRawFrame(buf)
}

func (c *Controller) Close() error {
	if c.bus != nil {
		return c.bus.Close()
	}
	return nil
}
