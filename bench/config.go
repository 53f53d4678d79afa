package bench

import (
	"errors"
	"time"

	"github.com/Leantar/fswatchbench/modules/notifier"
	"github.com/Leantar/fswatchbench/modules/report"
)

// EnvPrefix is the prefix of environment variables overriding Config.
const EnvPrefix = "fswatchbench"

type Config struct {
	Backend      string        `yaml:"backend" envconfig:"backend"`
	FilterRatio  int           `yaml:"filter_ratio" envconfig:"filter_ratio"`
	Exclude      []string      `yaml:"exclude" envconfig:"exclude"`
	EventWindow  time.Duration `yaml:"event_window" envconfig:"event_window"`
	TestWindow   time.Duration `yaml:"test_window" envconfig:"test_window"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"poll_interval"`
	SettleDelay  time.Duration `yaml:"settle_delay" envconfig:"settle_delay"`
	ModifyCount  int           `yaml:"modify_count" envconfig:"modify_count"`
	TmpDir       string        `yaml:"tmp_dir" envconfig:"tmp_dir"`
	LogLevel     string        `yaml:"log_level" envconfig:"log_level"`
	Report       report.Config `yaml:"report" envconfig:"report"`
}

func DefaultConfig() Config {
	return Config{
		Backend:      notifier.Default,
		FilterRatio:  10,
		EventWindow:  5 * time.Second,
		TestWindow:   3 * time.Second,
		PollInterval: 100 * time.Millisecond,
		SettleDelay:  100 * time.Millisecond,
		ModifyCount:  5,
		TmpDir:       "./tmp",
		LogLevel:     "info",
	}
}

func (c Config) Validate() error {
	switch {
	case c.FilterRatio < 1:
		return errors.New("filter_ratio must be at least 1")
	case c.EventWindow < 0 || c.TestWindow < 0:
		return errors.New("event windows must not be negative")
	case c.PollInterval <= 0:
		return errors.New("poll_interval must be positive")
	case c.ModifyCount < 0:
		return errors.New("modify_count must not be negative")
	case c.TmpDir == "":
		return errors.New("tmp_dir must be set")
	}

	return nil
}
