package groundctl

import (
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Duration is a time.Duration written as a string in TOML, e.g. "25ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// the image link listens this many ports above Port
	ImagePortOffset int  `toml:"image_port_offset"`
	Reconnect       bool `toml:"reconnect"`

	LogLevel    string `toml:"log_level"`
	ConsoleAddr string `toml:"console_addr"`

	SettleDelay     Duration `toml:"settle_delay"`
	SendPeriod      Duration `toml:"send_period"`
	ControlPeriod   Duration `toml:"control_period"`
	ImagePollPeriod Duration `toml:"image_poll_period"`
	WatchdogPeriod  Duration `toml:"watchdog_period"`
	StagingPeriod   Duration `toml:"staging_period"`
	StaleAfter      Duration `toml:"stale_after"`
	OdometryPeriod  Duration `toml:"odometry_period"`

	RowLength float64 `toml:"row_length"`
}

func DefaultConfig() Config {
	return Config{
		Host:            "10.0.1.1",
		Port:            5555,
		ImagePortOffset: 2,
		LogLevel:        "info",
		SettleDelay:     Duration{50 * time.Millisecond},
		SendPeriod:      Duration{25 * time.Millisecond},
		ControlPeriod:   Duration{100 * time.Millisecond},
		ImagePollPeriod: Duration{10 * time.Millisecond},
		WatchdogPeriod:  Duration{100 * time.Millisecond},
		StagingPeriod:   Duration{25 * time.Millisecond},
		StaleAfter:      Duration{500 * time.Millisecond},
		OdometryPeriod:  Duration{time.Second},
		RowLength:       DefaultRowLength,
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(fileName string) (Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return NewConfigFromReader(file)
}

func NewConfigFromReader(configReader io.Reader) (Config, error) {
	configData, err := io.ReadAll(configReader)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config reader")
	}
	config := DefaultConfig()
	md, err := toml.Decode(string(configData), &config)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to load configuration")
	}
	for _, key := range md.Undecoded() {
		log.WithField("key", key.String()).Warn("ignoring unknown configuration key")
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if p := c.Port + c.ImagePortOffset; p <= 0 || p > 65535 {
		return errors.Errorf("invalid image port %d", p)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log_level")
	}
	periods := map[string]Duration{
		"send_period":       c.SendPeriod,
		"control_period":    c.ControlPeriod,
		"image_poll_period": c.ImagePollPeriod,
		"watchdog_period":   c.WatchdogPeriod,
		"staging_period":    c.StagingPeriod,
		"stale_after":       c.StaleAfter,
		"odometry_period":   c.OdometryPeriod,
	}
	for name, d := range periods {
		if d.Duration <= 0 {
			return errors.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.SettleDelay.Duration < 0 {
		return errors.Errorf("settle_delay must not be negative, got %s", c.SettleDelay)
	}
	if c.RowLength < 0 {
		return errors.Errorf("row_length must not be negative, got %v", c.RowLength)
	}
	return nil
}

func (c Config) TelemetryAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) ImageAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port+c.ImagePortOffset))
}
