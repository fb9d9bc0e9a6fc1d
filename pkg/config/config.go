package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

type I2CConfig struct {
	Bus      string `json:"bus"`
	Address  int    `json:"address"`
	Register int    `json:"register"`
}

type MQTTConfig struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
	Topic    string `json:"topic"`
}

type InfluxConfig struct {
	Addr      string `json:"addr"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Database  string `json:"database"`
	Precision string `json:"precision,omitempty"`
}

type OutputConfig struct {
	Type   string        `json:"type"`
	MQTT   *MQTTConfig   `json:"mqtt,omitempty"`
	Influx *InfluxConfig `json:"influx,omitempty"`
}

type BackoffConfig struct {
	MinMs  int     `json:"min_ms"`
	MaxMs  int     `json:"max_ms"`
	Factor float64 `json:"factor"`
}

type Config struct {
	I2C                I2CConfig      `json:"i2c"`
	SensorType         string         `json:"sensor_type"`
	IntervalMs         int            `json:"interval_ms"`
	Room               string         `json:"room"`
	SpikeThreshold     int            `json:"spike_threshold"`
	SpikeSignedCompare bool           `json:"spike_signed_compare"`
	Backoff            BackoffConfig  `json:"backoff"`
	Outputs            []OutputConfig `json:"outputs"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
}

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"

	OutputConsole = "console"
	OutputMQTT    = "mqtt"
	OutputInflux  = "influx"
)

func DefaultConfig() Config {
	return Config{
		I2C:            I2CConfig{Bus: "1", Address: 0x08, Register: 0x00},
		SensorType:     SensorReal,
		IntervalMs:     10000,
		Room:           "Technischeruimte",
		SpikeThreshold: 20,
		Backoff:        BackoffConfig{MinMs: 500, MaxMs: 60000, Factor: 2},
		Outputs:        []OutputConfig{{Type: OutputConsole}},
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{Server: "tcp://localhost:1883", ClientID: "heating-panel", Topic: "technischeruimte"}
}

func DefaultInfluxConfig() InfluxConfig {
	return InfluxConfig{Addr: "http://localhost:8086", Database: "Technischeruimte", Precision: "s"}
}

// LoadFromFlags loads configuration from a JSON file (optional) and flags.
// Flags override values present in the JSON file.
func LoadFromFlags() (Config, error) {
	return Load(flag.CommandLine, os.Args[1:])
}

func Load(fs *flag.FlagSet, args []string) (Config, error) {
	cfgPath := fs.String("config", "", "Path to JSON config file")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus (e.g., '1' -> /dev/i2c-1)")
	flagI2CAddStr := fs.String("i2c-address", "", "I2C address of the controller (decimal or 0x hex)")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagInterval := fs.Int("interval-ms", -1, "Poll interval in ms")
	flagRoom := fs.String("room", "", "Value of the room tag")
	flagThreshold := fs.Int("spike-threshold", -1, "Max temperature change between polls in degrees")
	flagSignedCompare := fs.Bool("spike-signed-compare", false, "Compare recovered degrees instead of raw bytes in the spike test")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt,influx)")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT topic base")
	flagInfluxAddr := fs.String("influx-addr", "", "InfluxDB address (http://host:port)")
	flagInfluxDB := fs.String("influx-db", "", "InfluxDB database")
	flagInfluxUser := fs.String("influx-user", "", "InfluxDB username")
	flagInfluxPass := fs.String("influx-pass", "", "InfluxDB password")
	flagLogLevel := fs.String("log-level", "", "Log level (debug,info,warn,error)")
	flagLogFormat := fs.String("log-format", "", "Log format: console|json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			return cfg, errors.Annotate(err, "read config")
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Annotate(err, "parse config")
		}
	}

	if *flagI2CBus != "" {
		cfg.I2C.Bus = *flagI2CBus
	}
	if *flagI2CAddStr != "" {
		v, err := parseIntOrHex(*flagI2CAddStr)
		if err != nil {
			return cfg, errors.Annotate(err, "i2c-address")
		}
		cfg.I2C.Address = v
	}
	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagRoom != "" {
		cfg.Room = *flagRoom
	}
	if *flagThreshold != -1 {
		cfg.SpikeThreshold = *flagThreshold
	}
	if *flagSignedCompare {
		cfg.SpikeSignedCompare = true
	}
	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p)})
		}
		cfg.Outputs = outs
	}

	// Apply MQTT flags to all mqtt outputs; if none exist, create one.
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" {
		apply := func(m *MQTTConfig) {
			setIf(&m.Server, *flagMQTTServer)
			setIf(&m.Username, *flagMQTTUser)
			setIf(&m.Password, *flagMQTTPass)
			setIf(&m.ClientID, *flagClientID)
			setIf(&m.Topic, *flagTopic)
		}
		if !eachOutput(&cfg, OutputMQTT, func(o *OutputConfig) {
			if o.MQTT == nil {
				d := DefaultMQTTConfig()
				o.MQTT = &d
			}
			apply(o.MQTT)
		}) {
			d := DefaultMQTTConfig()
			apply(&d)
			cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: OutputMQTT, MQTT: &d})
		}
	}
	if *flagInfluxAddr != "" || *flagInfluxDB != "" || *flagInfluxUser != "" || *flagInfluxPass != "" {
		apply := func(c *InfluxConfig) {
			setIf(&c.Addr, *flagInfluxAddr)
			setIf(&c.Database, *flagInfluxDB)
			setIf(&c.Username, *flagInfluxUser)
			setIf(&c.Password, *flagInfluxPass)
		}
		if !eachOutput(&cfg, OutputInflux, func(o *OutputConfig) {
			if o.Influx == nil {
				d := DefaultInfluxConfig()
				o.Influx = &d
			}
			apply(o.Influx)
		}) {
			d := DefaultInfluxConfig()
			apply(&d)
			cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: OutputInflux, Influx: &d})
		}
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
	if *flagLogFormat != "" {
		cfg.LogFormat = *flagLogFormat
	}

	// outputs listed without their section get defaults
	for i := range cfg.Outputs {
		switch cfg.Outputs[i].Type {
		case OutputMQTT:
			if cfg.Outputs[i].MQTT == nil {
				d := DefaultMQTTConfig()
				cfg.Outputs[i].MQTT = &d
			}
		case OutputInflux:
			if cfg.Outputs[i].Influx == nil {
				d := DefaultInfluxConfig()
				cfg.Outputs[i].Influx = &d
			}
		}
	}

	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.IntervalMs <= 0 {
		return errors.NotValidf("interval-ms=%d, must be > 0", cfg.IntervalMs)
	}
	if cfg.SpikeThreshold < 0 {
		return errors.NotValidf("spike-threshold=%d, must be >= 0", cfg.SpikeThreshold)
	}
	if cfg.I2C.Address < 0 || cfg.I2C.Address > 0x7f {
		return errors.NotValidf("i2c address=0x%x", cfg.I2C.Address)
	}
	if cfg.I2C.Register < 0 || cfg.I2C.Register > 0xff {
		return errors.NotValidf("i2c register=0x%x", cfg.I2C.Register)
	}
	switch cfg.SensorType {
	case SensorReal, SensorSimulation:
	default:
		return errors.NotValidf("sensor type %q", cfg.SensorType)
	}
	if cfg.Backoff.MinMs <= 0 || cfg.Backoff.MaxMs < cfg.Backoff.MinMs || cfg.Backoff.Factor < 1 {
		return errors.NotValidf("backoff %+v", cfg.Backoff)
	}
	if len(cfg.Outputs) == 0 {
		return errors.NotValidf("empty outputs")
	}
	for i, o := range cfg.Outputs {
		switch o.Type {
		case OutputConsole:
		case OutputMQTT:
			if o.MQTT == nil || o.MQTT.Server == "" || o.MQTT.Topic == "" {
				return errors.NotValidf("outputs[%d] mqtt requires server and topic", i)
			}
		case OutputInflux:
			if o.Influx == nil || o.Influx.Addr == "" || o.Influx.Database == "" {
				return errors.NotValidf("outputs[%d] influx requires addr and database", i)
			}
		default:
			return errors.NotValidf("outputs[%d] type %q", i, o.Type)
		}
	}
	return nil
}

func eachOutput(cfg *Config, typ string, f func(*OutputConfig)) bool {
	found := false
	for i := range cfg.Outputs {
		if strings.ToLower(cfg.Outputs[i].Type) == typ {
			f(&cfg.Outputs[i])
			found = true
		}
	}
	return found
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Annotatef(err, "invalid number '%s'", s)
	}
	return v, nil
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
