// Package config loads runtime settings from configs/config.yml and ENERGY_* env vars.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"energy_console/internal/logger"
	"energy_console/internal/tariff"
	"energy_console/internal/transport"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "ENERGY"

type Config struct {
	Port         string        `mapstructure:"port"`
	Log          LogConfig     `mapstructure:"log"`
	Rooms        []string      `mapstructure:"rooms"`
	MeteringRoom string        `mapstructure:"metering_room"`
	Series       SeriesConfig  `mapstructure:"series"`
	Alerts       AlertsConfig  `mapstructure:"alerts"`
	MQTT         MQTTConfig    `mapstructure:"mqtt"`
	Pricing      PricingConfig `mapstructure:"pricing"`
	Tariff       TariffConfig  `mapstructure:"tariff"`
	Journal      JournalConfig `mapstructure:"journal"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

type SeriesConfig struct {
	MaxPoints int `mapstructure:"max_points"`
}

type AlertsConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type MQTTConfig struct {
	Broker         string           `mapstructure:"broker"`
	ClientID       string           `mapstructure:"client_id"`
	Username       string           `mapstructure:"username"`
	Password       string           `mapstructure:"password"`
	QoS            int              `mapstructure:"qos"`
	Topics         transport.Topics `mapstructure:"topics"`
	ConnectTimeout time.Duration    `mapstructure:"connect_timeout"`
	PublishTimeout time.Duration    `mapstructure:"publish_timeout"`
}

type PricingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Interval     time.Duration `mapstructure:"interval"`
	HistoryHours int           `mapstructure:"history_hours"`
	StatsHours   int           `mapstructure:"stats_hours"`
	MaxAge       time.Duration `mapstructure:"max_age"`
}

type TierConfig struct {
	BlockKWh float64 `mapstructure:"block_kwh"`
	Rate     string  `mapstructure:"rate"`
}

type TariffConfig struct {
	Tiers []TierConfig `mapstructure:"tiers"`
}

type JournalConfig struct {
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
}

var ErrInvalidConfig = errors.New("invalid config")

func setDefaults(v *viper.Viper) {
	topics := transport.DefaultTopics()

	v.SetDefault("port", "8080")
	v.SetDefault("log.level", logger.InfoLevel)
	v.SetDefault("log.format", logger.FormatConsole)
	v.SetDefault("rooms", []string{"room1", "room2"})
	v.SetDefault("metering_room", "")
	v.SetDefault("series.max_points", 60)
	v.SetDefault("alerts.capacity", 10)

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.topics.telemetry", topics.Telemetry)
	v.SetDefault("mqtt.topics.anomaly", topics.Anomaly)
	v.SetDefault("mqtt.topics.device_state", topics.DeviceState)
	v.SetDefault("mqtt.topics.command", topics.Command)
	v.SetDefault("mqtt.topics.mode", topics.Mode)
	v.SetDefault("mqtt.connect_timeout", "10s")
	v.SetDefault("mqtt.publish_timeout", "5s")

	v.SetDefault("pricing.enabled", true)
	v.SetDefault("pricing.base_url", "http://localhost:5000")
	v.SetDefault("pricing.timeout", "10s")
	v.SetDefault("pricing.interval", "5m")
	v.SetDefault("pricing.history_hours", 6)
	v.SetDefault("pricing.stats_hours", 24)
	v.SetDefault("pricing.max_age", "15m")

	v.SetDefault("tariff.tiers", []map[string]any{
		{"block_kwh": 250, "rate": "0.110"},
		{"block_kwh": 500, "rate": "0.145"},
		{"block_kwh": 0, "rate": "0.185"},
	})

	v.SetDefault("journal.path", ":memory:")
	v.SetDefault("journal.max_entries", 1000)
}

// Load reads configuration. An empty path searches ./configs/config.yml; a
// missing file in the search path is not an error, defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	rooms := c.Rooms[:0]
	for _, r := range c.Rooms {
		if r = strings.TrimSpace(r); r != "" {
			rooms = append(rooms, r)
		}
	}
	c.Rooms = rooms
	if len(c.Rooms) == 0 {
		return fmt.Errorf("%w: at least one room is required", ErrInvalidConfig)
	}
	if c.MeteringRoom == "" {
		c.MeteringRoom = c.Rooms[0]
	}
	found := false
	for _, r := range c.Rooms {
		if r == c.MeteringRoom {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: metering_room %q is not a configured room", ErrInvalidConfig, c.MeteringRoom)
	}
	if !logger.ValidLevel(c.Log.Level) {
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	if !logger.ValidFormat(c.Log.Format) {
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2", ErrInvalidConfig)
	}
	if _, err := c.Schedule(); err != nil {
		return err
	}
	return nil
}

// Schedule builds the tariff schedule from the configured tiers.
func (c *Config) Schedule() (tariff.Schedule, error) {
	tiers := make([]tariff.Tier, 0, len(c.Tariff.Tiers))
	for i, t := range c.Tariff.Tiers {
		rate, err := decimal.NewFromString(strings.TrimSpace(t.Rate))
		if err != nil {
			return tariff.Schedule{}, fmt.Errorf("%w: tariff.tiers[%d].rate: %w", ErrInvalidConfig, i, err)
		}
		tiers = append(tiers, tariff.Tier{
			BlockKWh:  decimal.NewFromFloat(t.BlockKWh),
			Rate:      rate,
			Unbounded: t.BlockKWh <= 0,
		})
	}
	s, err := tariff.NewSchedule(tiers...)
	if err != nil {
		return tariff.Schedule{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return s, nil
}

// Transport converts the MQTT section to transport options.
func (c *Config) Transport() transport.Options {
	return transport.Options{
		Broker:         c.MQTT.Broker,
		ClientID:       c.MQTT.ClientID,
		Username:       c.MQTT.Username,
		Password:       c.MQTT.Password,
		QoS:            byte(c.MQTT.QoS),
		Topics:         c.MQTT.Topics,
		ConnectTimeout: c.MQTT.ConnectTimeout,
		PublishTimeout: c.MQTT.PublishTimeout,
	}
}
