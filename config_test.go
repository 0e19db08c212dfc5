package groundctl

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "10.0.1.1:5555", cfg.TelemetryAddr())
	assert.Equal(t, "10.0.1.1:5557", cfg.ImageAddr())
	assert.Equal(t, 25*time.Millisecond, cfg.SendPeriod.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.StaleAfter.Duration)
	assert.False(t, cfg.Reconnect)
}

func TestConfigFromReader(t *testing.T) {
	cfg, err := NewConfigFromReader(bytes.NewBufferString(`
host = "192.168.1.20"
port = 6000
reconnect = true
send_period = "50ms"
console_addr = ":8080"
row_length = 64.54
unknown = 1
`))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Host = "192.168.1.20"
	want.Port = 6000
	want.Reconnect = true
	want.SendPeriod = Duration{50 * time.Millisecond}
	want.ConsoleAddr = ":8080"
	want.RowLength = 64.54
	assert.Equal(t, want, cfg)
	assert.Equal(t, "192.168.1.20:6002", cfg.ImageAddr())
}

func TestConfigInvalid(t *testing.T) {
	for _, data := range []string{
		`send_period = "soon"`,
		`port = 0`,
		`host = ""`,
		`stale_after = "0s"`,
		`settle_delay = "-1ms"`,
		`row_length = -1.0`,
		`log_level = "loud"`,
		`port = 65535`,
		`port = "5555"`,
	} {
		_, err := NewConfigFromReader(bytes.NewBufferString(data))
		assert.Error(t, err, data)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("does-not-exist.toml")
	assert.Error(t, err)
}
