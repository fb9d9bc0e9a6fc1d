// Package influx writes measurement batches to an InfluxDB 1.x database.
package influx

import (
	"github.com/ericogr/heating-panel-bridge/pkg/config"
	"github.com/ericogr/heating-panel-bridge/pkg/output"
	"github.com/ericogr/heating-panel-bridge/pkg/telemetry"
	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/juju/errors"
)

type writer interface {
	Write(bp client.BatchPoints) error
	Close() error
}

type InfluxOutput struct {
	c         writer
	database  string
	precision string
}

func NewInflux(cfg config.InfluxConfig) (output.Output, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "influx client addr=%s", cfg.Addr)
	}
	return newInflux(c, cfg.Database, cfg.Precision), nil
}

func newInflux(c writer, database, precision string) *InfluxOutput {
	return &InfluxOutput{c: c, database: database, precision: precision}
}

// Publish writes one request per batch. Batches without a time get the
// server's timestamp.
func (o *InfluxOutput) Publish(batches []telemetry.Batch) error {
	for _, b := range batches {
		bp, err := client.NewBatchPoints(client.BatchPointsConfig{
			Database:  o.database,
			Precision: o.precision,
		})
		if err != nil {
			return errors.Trace(err)
		}
		var pt *client.Point
		if b.Time.IsZero() {
			pt, err = client.NewPoint(b.Measurement, b.Tags, b.Fields)
		} else {
			pt, err = client.NewPoint(b.Measurement, b.Tags, b.Fields, b.Time)
		}
		if err != nil {
			return errors.Annotatef(err, "point %s", b.Measurement)
		}
		bp.AddPoint(pt)
		if err := o.c.Write(bp); err != nil {
			return errors.Annotatef(err, "influx write db=%s measurement=%s", o.database, b.Measurement)
		}
	}
	return nil
}

func (o *InfluxOutput) Close() error {
	return o.c.Close()
}
