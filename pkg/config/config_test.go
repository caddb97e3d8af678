package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntOrHex(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"72", 72, true},
		{"0x48", 0x48, true},
		{"0X17", 0x17, true},
		{"0xZZ", 0, false},
		{"bad", 0, false},
	}
	for _, tt := range tests {
		got, err := parseIntOrHex(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseIntOrHex(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("parseIntOrHex(%q) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"console,mqtt", []string{"console", "mqtt"}},
		{" console , ,sqlite ", []string{"console", "sqlite"}},
	}
	for _, tt := range tests {
		if got := parseCSV(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseCSV(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.RFID, cfg.RFID)
	assert.Equal(t, "real", cfg.SensorType)
	assert.Equal(t, 0x48, cfg.I2CAddress)
	assert.Equal(t, 0x17, cfg.DeckVID)
	assert.Equal(t, 0x01, cfg.DeckPID)
	require.Len(t, cfg.Outputs, 1)
	assert.Equal(t, "console", cfg.Outputs[0].Type)
	assert.Equal(t, 1000, cfg.Outputs[0].IntervalMs)
}

func TestLoadFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rfid.json")
	js := `{
        "sensor_type": "simulation",
        "led_type": "log",
        "log_level": "debug",
        "rfid": { "landed_threshold": 3300, "max_delay_ms": 1500 },
        "outputs": [
            {"type": "console", "interval_ms": 500},
            {"type": "mqtt", "mqtt": {"server": "tcp://broker:1883", "state_topic": "rfid/state"}}
        ]
    }`
	require.NoError(t, os.WriteFile(path, []byte(js), 0o600))

	cfg, err := Load([]string{
		"--config", path,
		"--landed-threshold", "3400",
		"--deck-vid", "0x20",
		"--mqtt-client-id", "deck-1",
		"--output-intervals", "mqtt=2000",
	})
	require.NoError(t, err)

	assert.Equal(t, "simulation", cfg.SensorType)
	assert.Equal(t, "log", cfg.LEDType)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3400, cfg.RFID.LandedThreshold, "flag overrides file")
	assert.Equal(t, 1500, cfg.RFID.MaxDelayMs)
	assert.Equal(t, 4000, cfg.RFID.MaxStrength, "default survives partial block")
	assert.Equal(t, 0x20, cfg.DeckVID)

	require.Len(t, cfg.Outputs, 2)
	assert.Equal(t, 500, cfg.Outputs[0].IntervalMs)
	assert.Equal(t, 2000, cfg.Outputs[1].IntervalMs)
	require.NotNil(t, cfg.Outputs[1].MQTT)
	assert.Equal(t, "tcp://broker:1883", cfg.Outputs[1].MQTT.Server)
	assert.Equal(t, "rfid/state", cfg.Outputs[1].MQTT.StateTopic)
	assert.Equal(t, "deck-1", cfg.Outputs[1].MQTT.ClientID)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("RFIDDECK_RFID_MAX_STRENGTH", "4095")
	t.Setenv("RFIDDECK_SENSOR_TYPE", "simulation")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 4095, cfg.RFID.MaxStrength)
	assert.Equal(t, "simulation", cfg.SensorType)
}

func TestLoadOutputsFlag(t *testing.T) {
	cfg, err := Load([]string{"--outputs", "console,sqlite", "--sqlite-path", "/tmp/rfid.db", "--interval-ms", "250"})
	require.NoError(t, err)
	require.Len(t, cfg.Outputs, 2)
	assert.Equal(t, "sqlite", cfg.Outputs[1].Type)
	require.NotNil(t, cfg.Outputs[1].SQLite)
	assert.Equal(t, "/tmp/rfid.db", cfg.Outputs[1].SQLite.Path)
	assert.Equal(t, 250, cfg.Outputs[0].IntervalMs)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load([]string{"--sensor-type", "laser"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load([]string{"--max-delay-ms", "10"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load([]string{"--outputs", "sqlite"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load([]string{"--i2c-address", "0xZZ"})
	assert.Error(t, err)

	_, err = Load([]string{"--config", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	_, err = Load([]string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestLoadHelp(t *testing.T) {
	_, err := Load([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}
