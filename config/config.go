package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	WAL struct {
		Dir           string        `yaml:"dir"`
		SegmentSizeMB int64         `yaml:"segment_size_mb"`
		SegmentAge    time.Duration `yaml:"segment_age"`
	} `yaml:"wal"`
	Snapshot struct {
		Dir         string        `yaml:"dir"`
		Interval    time.Duration `yaml:"interval"`
		EveryEvents uint64        `yaml:"every_events"`
	} `yaml:"snapshot"`
	Outbox struct {
		Dir string `yaml:"dir"`
	} `yaml:"outbox"`
	Kafka struct {
		Enabled    bool          `yaml:"enabled"`
		Brokers    []string      `yaml:"brokers"`
		FillTopic  string        `yaml:"fill_topic"`
		QuoteTopic string        `yaml:"quote_topic"`
		DrainEvery time.Duration `yaml:"drain_every"`
	} `yaml:"kafka"`
	Symbols []Symbol `yaml:"symbols"`
}

type Symbol struct {
	Name     string `yaml:"name"`
	TickSize int64  `yaml:"tick_size"`
	MinPrice int64  `yaml:"min_price"`
	MaxPrice int64  `yaml:"max_price"`
}

func Default() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Metrics.Addr = ":9100"
	c.WAL.Dir = "./data/wal"
	c.WAL.SegmentSizeMB = 64
	c.WAL.SegmentAge = time.Hour
	c.Snapshot.Dir = "./data/snapshots"
	c.Snapshot.Interval = time.Minute
	c.Snapshot.EveryEvents = 100_000
	c.Outbox.Dir = "./data/outbox"
	c.Kafka.Enabled = false
	c.Kafka.Brokers = []string{"localhost:9092"}
	c.Kafka.FillTopic = "fills"
	c.Kafka.QuoteTopic = "quotes"
	c.Kafka.DrainEvery = 250 * time.Millisecond
	c.Symbols = []Symbol{{Name: "BTCUSDT", TickSize: 1, MinPrice: 1}}
	return c
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, c.validate()
}

func (c Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: no symbols configured")
	}
	seen := map[string]bool{}
	for _, s := range c.Symbols {
		if s.Name == "" {
			return fmt.Errorf("config: symbol with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate symbol %s", s.Name)
		}
		seen[s.Name] = true
		if s.TickSize <= 0 {
			return fmt.Errorf("config: symbol %s: tick_size must be positive", s.Name)
		}
		if s.MaxPrice != 0 && s.MaxPrice < s.MinPrice {
			return fmt.Errorf("config: symbol %s: max_price below min_price", s.Name)
		}
	}
	return nil
}
