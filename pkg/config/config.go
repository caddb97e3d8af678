package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RFIDDECK"

var ErrInvalid = errors.New("invalid configuration")

type MQTTConfig struct {
	Server            string `mapstructure:"server"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	ClientID          string `mapstructure:"client_id"`
	StateTopic        string `mapstructure:"state_topic"`
	DiscoveryTopic    string `mapstructure:"discovery_topic"`
	DiscoveryName     string `mapstructure:"discovery_name"`
	DiscoveryUniqueID string `mapstructure:"discovery_unique_id"`
}

type SQLiteConfig struct {
	Path      string `mapstructure:"path"`
	BatchSize int    `mapstructure:"batch_size"`
	// FlushMs flushes a partial batch after this long; 0 disables it.
	FlushMs int `mapstructure:"flush_ms"`
}

type OutputConfig struct {
	Type       string        `mapstructure:"type"`
	IntervalMs int           `mapstructure:"interval_ms"`
	MQTT       *MQTTConfig   `mapstructure:"mqtt"`
	SQLite     *SQLiteConfig `mapstructure:"sqlite"`
}

// RFIDConfig holds the tuned constants of the proximity indicator.
type RFIDConfig struct {
	MaxStrength     int `mapstructure:"max_strength"`
	BasePeriodMs    int `mapstructure:"base_period_ms"`
	LandedThreshold int `mapstructure:"landed_threshold"`
	DefaultDelayMs  int `mapstructure:"default_delay_ms"`
	MaxDelayMs      int `mapstructure:"max_delay_ms"`
	PollPeriodMs    int `mapstructure:"poll_period_ms"`
	StartupWaitMs   int `mapstructure:"startup_wait_ms"`
}

type Config struct {
	SensorType   string         `mapstructure:"sensor_type"`
	I2CBus       string         `mapstructure:"i2c_bus"`
	I2CAddress   int            `mapstructure:"i2c_address"`
	ADCChannel   int            `mapstructure:"adc_channel"`
	SampleRate   int            `mapstructure:"sample_rate"`
	InputPin     string         `mapstructure:"input_pin"`
	LEDType      string         `mapstructure:"led_type"`
	LEDPin       string         `mapstructure:"led_pin"`
	LEDActiveLow bool           `mapstructure:"led_active_low"`
	DeckVID      int            `mapstructure:"deck_vid"`
	DeckPID      int            `mapstructure:"deck_pid"`
	LogLevel     string         `mapstructure:"log_level"`
	RFID         RFIDConfig     `mapstructure:"rfid"`
	Outputs      []OutputConfig `mapstructure:"outputs"`
	IntervalMs   int            `mapstructure:"interval_ms"`
}

func DefaultConfig() Config {
	return Config{
		SensorType: "real",
		I2CBus:     "1",
		I2CAddress: 0x48,
		ADCChannel: 0,
		SampleRate: 860,
		LEDType:    "gpio",
		LEDPin:     "GPIO17",
		DeckVID:    0x17,
		DeckPID:    0x01,
		LogLevel:   "info",
		RFID: RFIDConfig{
			MaxStrength:     4000,
			BasePeriodMs:    50,
			LandedThreshold: 3500,
			DefaultDelayMs:  1000,
			MaxDelayMs:      2000,
			PollPeriodMs:    10,
			StartupWaitMs:   250,
		},
		Outputs:    []OutputConfig{{Type: "console", IntervalMs: 1000}},
		IntervalMs: 1000,
	}
}

// Load builds the configuration from defaults, an optional JSON file
// (--config), RFIDDECK_* environment variables and flags, in increasing order
// of precedence.
func Load(args []string) (Config, error) {
	fs := pflag.NewFlagSet("rfid-deck", pflag.ContinueOnError)
	def := DefaultConfig()

	cfgPath := fs.String("config", "", "Path to JSON config file")
	fs.String("sensor-type", def.SensorType, "sensor type: real|simulation")
	fs.String("i2c-bus", def.I2CBus, "I2C bus (e.g., '1' -> /dev/i2c-1)")
	flagI2CAddStr := fs.String("i2c-address", "", "I2C address (decimal or 0x hex)")
	fs.Int("adc-channel", def.ADCChannel, "ADS1115 input carrying the proximity signal (0-3)")
	fs.Int("sample-rate", def.SampleRate, "ADS1115 sample rate (SPS)")
	fs.String("input-pin", def.InputPin, "Host pin wired to the deck TX2 line, configured as plain input")
	fs.String("led-type", def.LEDType, "indicator LED: gpio|log")
	fs.String("led-pin", def.LEDPin, "Host pin driving the indicator LED")
	fs.Bool("led-active-low", def.LEDActiveLow, "LED lights when the pin is low")
	flagVID := fs.String("deck-vid", "", "Discovered deck vendor id (decimal or 0x hex)")
	flagPID := fs.String("deck-pid", "", "Discovered deck product id (decimal or 0x hex)")
	fs.String("log-level", def.LogLevel, "log level: debug|info|warn|error")
	fs.Int("max-strength", def.RFID.MaxStrength, "Reading treated as full signal strength")
	fs.Int("base-period-ms", def.RFID.BasePeriodMs, "Indicator delay at full strength")
	fs.Int("landed-threshold", def.RFID.LandedThreshold, "Readings above this hold the LED solid")
	fs.Int("max-delay-ms", def.RFID.MaxDelayMs, "Upper bound of the indicator delay")
	fs.Int("poll-period-ms", def.RFID.PollPeriodMs, "Sampling period")
	fs.Int("interval-ms", def.IntervalMs, "Publish interval in ms")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt,sqlite)")
	flagOutputIntervals := fs.String("output-intervals", "", "Comma-separated output intervals e.g. console=1000,mqtt=5000")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT state topic")
	flagSQLitePath := fs.String("sqlite-path", "", "SQLite telemetry database path")

	if err := fs.Parse(args); err != nil {
		return def, err
	}

	v := viper.New()
	setDefaults(v, def)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *cfgPath != "" {
		v.SetConfigFile(*cfgPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return def, fmt.Errorf("read config: %w", err)
		}
	}

	for key, name := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return def, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return def, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Outputs) == 0 && !v.InConfig("outputs") {
		cfg.Outputs = def.Outputs
	}

	if *flagI2CAddStr != "" {
		n, err := parseIntOrHex(*flagI2CAddStr)
		if err != nil {
			return cfg, fmt.Errorf("i2c-address: %w", err)
		}
		cfg.I2CAddress = n
	}
	if *flagVID != "" {
		n, err := parseIntOrHex(*flagVID)
		if err != nil {
			return cfg, fmt.Errorf("deck-vid: %w", err)
		}
		cfg.DeckVID = n
	}
	if *flagPID != "" {
		n, err := parseIntOrHex(*flagPID)
		if err != nil {
			return cfg, fmt.Errorf("deck-pid: %w", err)
		}
		cfg.DeckPID = n
	}
	if *flagOutputs != "" {
		// convert simple CSV of types into structured OutputConfig entries
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: p, IntervalMs: cfg.IntervalMs})
		}
		cfg.Outputs = outs
	}
	if *flagOutputIntervals != "" {
		outIntervals := map[string]int{}
		for _, p := range parseCSV(*flagOutputIntervals) {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			if n, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil {
				outIntervals[strings.TrimSpace(kv[0])] = n
			}
		}
		for i := range cfg.Outputs {
			if n, ok := outIntervals[cfg.Outputs[i].Type]; ok {
				cfg.Outputs[i].IntervalMs = n
			}
		}
	}
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" {
		// Apply MQTT flags to all mqtt outputs; if none exist, create one.
		apply := func(m *MQTTConfig) {
			if *flagMQTTServer != "" {
				m.Server = *flagMQTTServer
			}
			if *flagMQTTUser != "" {
				m.Username = *flagMQTTUser
			}
			if *flagMQTTPass != "" {
				m.Password = *flagMQTTPass
			}
			if *flagClientID != "" {
				m.ClientID = *flagClientID
			}
			if *flagTopic != "" {
				m.StateTopic = *flagTopic
			}
		}
		applied := false
		for i := range cfg.Outputs {
			if strings.ToLower(cfg.Outputs[i].Type) == "mqtt" {
				if cfg.Outputs[i].MQTT == nil {
					cfg.Outputs[i].MQTT = &MQTTConfig{}
				}
				apply(cfg.Outputs[i].MQTT)
				applied = true
			}
		}
		if !applied {
			out := OutputConfig{Type: "mqtt", IntervalMs: cfg.IntervalMs, MQTT: &MQTTConfig{}}
			apply(out.MQTT)
			cfg.Outputs = append(cfg.Outputs, out)
		}
	}
	if *flagSQLitePath != "" {
		applied := false
		for i := range cfg.Outputs {
			if strings.ToLower(cfg.Outputs[i].Type) == "sqlite" {
				if cfg.Outputs[i].SQLite == nil {
					cfg.Outputs[i].SQLite = &SQLiteConfig{}
				}
				cfg.Outputs[i].SQLite.Path = *flagSQLitePath
				applied = true
			}
		}
		if !applied {
			cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: "sqlite", IntervalMs: cfg.IntervalMs, SQLite: &SQLiteConfig{Path: *flagSQLitePath}})
		}
	}
	// ensure outputs have interval default
	for i := range cfg.Outputs {
		if cfg.Outputs[i].IntervalMs == 0 {
			cfg.Outputs[i].IntervalMs = cfg.IntervalMs
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"sensor_type":           "sensor-type",
	"i2c_bus":               "i2c-bus",
	"adc_channel":           "adc-channel",
	"sample_rate":           "sample-rate",
	"input_pin":             "input-pin",
	"led_type":              "led-type",
	"led_pin":               "led-pin",
	"led_active_low":        "led-active-low",
	"log_level":             "log-level",
	"rfid.max_strength":     "max-strength",
	"rfid.base_period_ms":   "base-period-ms",
	"rfid.landed_threshold": "landed-threshold",
	"rfid.max_delay_ms":     "max-delay-ms",
	"rfid.poll_period_ms":   "poll-period-ms",
	"interval_ms":           "interval-ms",
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("sensor_type", def.SensorType)
	v.SetDefault("i2c_bus", def.I2CBus)
	v.SetDefault("i2c_address", def.I2CAddress)
	v.SetDefault("adc_channel", def.ADCChannel)
	v.SetDefault("sample_rate", def.SampleRate)
	v.SetDefault("input_pin", def.InputPin)
	v.SetDefault("led_type", def.LEDType)
	v.SetDefault("led_pin", def.LEDPin)
	v.SetDefault("led_active_low", def.LEDActiveLow)
	v.SetDefault("deck_vid", def.DeckVID)
	v.SetDefault("deck_pid", def.DeckPID)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("rfid.max_strength", def.RFID.MaxStrength)
	v.SetDefault("rfid.base_period_ms", def.RFID.BasePeriodMs)
	v.SetDefault("rfid.landed_threshold", def.RFID.LandedThreshold)
	v.SetDefault("rfid.default_delay_ms", def.RFID.DefaultDelayMs)
	v.SetDefault("rfid.max_delay_ms", def.RFID.MaxDelayMs)
	v.SetDefault("rfid.poll_period_ms", def.RFID.PollPeriodMs)
	v.SetDefault("rfid.startup_wait_ms", def.RFID.StartupWaitMs)
	v.SetDefault("interval_ms", def.IntervalMs)
}

func (c Config) Validate() error {
	switch c.SensorType {
	case "real", "simulation":
	default:
		return fmt.Errorf("%w: sensor_type %q", ErrInvalid, c.SensorType)
	}
	switch c.LEDType {
	case "gpio", "log":
	default:
		return fmt.Errorf("%w: led_type %q", ErrInvalid, c.LEDType)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate must be > 0", ErrInvalid)
	}
	if c.ADCChannel < 0 || c.ADCChannel > 3 {
		return fmt.Errorf("%w: adc_channel %d", ErrInvalid, c.ADCChannel)
	}
	if c.DeckVID < 0 || c.DeckVID > 0xFF || c.DeckPID < 0 || c.DeckPID > 0xFF {
		return fmt.Errorf("%w: deck vid/pid must fit in a byte", ErrInvalid)
	}
	r := c.RFID
	if r.MaxStrength <= 0 || r.MaxStrength > 0xFFFF {
		return fmt.Errorf("%w: rfid.max_strength %d", ErrInvalid, r.MaxStrength)
	}
	if r.LandedThreshold < 0 || r.LandedThreshold > 0xFFFF {
		return fmt.Errorf("%w: rfid.landed_threshold %d", ErrInvalid, r.LandedThreshold)
	}
	if r.BasePeriodMs <= 0 || r.DefaultDelayMs <= 0 || r.PollPeriodMs <= 0 {
		return fmt.Errorf("%w: rfid periods must be > 0", ErrInvalid)
	}
	if r.MaxDelayMs < r.BasePeriodMs {
		return fmt.Errorf("%w: rfid.max_delay_ms below base period", ErrInvalid)
	}
	if r.StartupWaitMs < 0 {
		return fmt.Errorf("%w: rfid.startup_wait_ms must be >= 0", ErrInvalid)
	}
	for _, o := range c.Outputs {
		switch strings.ToLower(o.Type) {
		case "console", "mqtt":
		case "sqlite":
			if o.SQLite == nil || o.SQLite.Path == "" {
				return fmt.Errorf("%w: sqlite output needs a path", ErrInvalid)
			}
		default:
			return fmt.Errorf("%w: output type %q", ErrInvalid, o.Type)
		}
		if o.IntervalMs <= 0 {
			return fmt.Errorf("%w: %s interval must be > 0", ErrInvalid, o.Type)
		}
	}
	return nil
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
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
