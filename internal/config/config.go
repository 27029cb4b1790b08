package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConferenceConfig stores mixing engine settings.
type ConferenceConfig struct {
	Interval               time.Duration `yaml:"interval"`
	MaxQueue               int           `yaml:"max_queue"`
	DropThreshold          int           `yaml:"drop_threshold"`
	DropTimeLimit          time.Duration `yaml:"drop_time_limit"`
	RepeatBudget           int           `yaml:"repeat_budget"`
	WaitForLatency         time.Duration `yaml:"waitfor_latency"`
	ConferenceTableSize    int           `yaml:"conference_table_size"`
	ChannelTableSize       int           `yaml:"channel_table_size"`
	DefaultMaxUsers        int           `yaml:"default_max_users"`
	DefaultType            string        `yaml:"default_type"`
	DisconnectOnSpyFailure bool          `yaml:"disconnect_on_spy_failure"`
	FrameRateCheckTicks    int           `yaml:"frame_rate_check_ticks"`
}

// VADConfig stores voice activity detection settings for telephone members.
type VADConfig struct {
	// Mode is the WebRTC detector aggressiveness, 0 (quality) to 3.
	Mode         int `yaml:"mode"`
	IgnoreFrames int `yaml:"ignore_frames"`
}

// SoundsConfig stores the sound clip library settings.
type SoundsConfig struct {
	Directory string `yaml:"directory"`
	CacheSize int    `yaml:"cache_size"`
}

// MetricsConfig stores the Prometheus exporter settings.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

// SimulationConfig stores the built-in loopback caller settings.
type SimulationConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Conferences          int           `yaml:"conferences"`
	MembersPerConference int           `yaml:"members_per_conference"`
	Duration             time.Duration `yaml:"duration"`
	Formats              []string      `yaml:"formats"`
	Flags                string        `yaml:"flags"`
}

// Config stores the application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Conference ConferenceConfig `yaml:"conference"`
	VAD        VADConfig        `yaml:"vad"`
	Sounds     SoundsConfig     `yaml:"sounds"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads the configuration from the given file path.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filePath, err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	conf := &c.Conference
	if conf.Interval == 0 {
		conf.Interval = 20 * time.Millisecond
	}
	if conf.MaxQueue == 0 {
		conf.MaxQueue = 100
	}
	if conf.DropThreshold == 0 {
		conf.DropThreshold = 40
	}
	if conf.DropTimeLimit == 0 {
		conf.DropTimeLimit = time.Second
	}
	if conf.WaitForLatency == 0 {
		conf.WaitForLatency = 40 * time.Millisecond
	}
	if conf.ConferenceTableSize == 0 {
		conf.ConferenceTableSize = 199
	}
	if conf.ChannelTableSize == 0 {
		conf.ChannelTableSize = 199
	}
	if conf.DefaultType == "" {
		conf.DefaultType = "konference"
	}
	if conf.FrameRateCheckTicks == 0 {
		conf.FrameRateCheckTicks = 50
	}

	if c.VAD.IgnoreFrames == 0 {
		c.VAD.IgnoreFrames = 20
	}

	if c.Sounds.CacheSize == 0 {
		c.Sounds.CacheSize = 64
	}

	if c.Metrics.ListenAddress == "" {
		c.Metrics.ListenAddress = ":9464"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	sim := &c.Simulation
	if sim.Conferences == 0 {
		sim.Conferences = 1
	}
	if sim.MembersPerConference == 0 {
		sim.MembersPerConference = 3
	}
	if len(sim.Formats) == 0 {
		sim.Formats = []string{"slin"}
	}
}

// Validate checks settings the engine cannot run with.
func (c *Config) Validate() error {
	conf := c.Conference
	var errs []error
	if conf.Interval <= 0 {
		errs = append(errs, errors.New("conference.interval must be positive"))
	}
	if conf.MaxQueue <= 0 {
		errs = append(errs, errors.New("conference.max_queue must be positive"))
	}
	if conf.DropThreshold <= 0 || conf.DropThreshold >= conf.MaxQueue {
		errs = append(errs, fmt.Errorf("conference.drop_threshold must be in (0, %d)", conf.MaxQueue))
	}
	if conf.RepeatBudget < 0 {
		errs = append(errs, errors.New("conference.repeat_budget must not be negative"))
	}
	if conf.ConferenceTableSize <= 0 || conf.ChannelTableSize <= 0 {
		errs = append(errs, errors.New("table sizes must be positive"))
	}
	if conf.DefaultMaxUsers < 0 {
		errs = append(errs, errors.New("conference.default_max_users must not be negative"))
	}
	if c.VAD.Mode < 0 || c.VAD.Mode > 3 {
		errs = append(errs, errors.New("vad.mode must be in [0, 3]"))
	}
	if c.Sounds.CacheSize < 0 {
		errs = append(errs, errors.New("sounds.cache_size must not be negative"))
	}
	return errors.Join(errs...)
}
