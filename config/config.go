// Package config defines the framework's static startup configuration:
// pool sizes, active-object priorities and queue capacities, tick rates,
// and the tracing level, loaded from YAML and validated before use.
//
// Grounded on MachineConfig (internal/primitives/machineconfig.go): a
// struct tagged for both json and yaml, a Validate method that checks
// required fields and cross-references before anything is built from it,
// and the YAMLPersister load path (internal/production/persister.go) for
// read-validate-use file handling.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// PoolConfig describes one fixed-block event pool's capacity class and
// preallocated block count (mpool.Pool).
type PoolConfig struct {
	BlockSize int `yaml:"blockSize"`
	Count     int `yaml:"count"`
}

// ActiveObjectConfig describes one statically-known active object's
// identity, priority, and event-queue capacity.
type ActiveObjectConfig struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
	QueueCap int    `yaml:"queueCap"`
}

// TickRateConfig describes one tick-rate wheel the framework's time-event
// table should host, optionally fronted by a TickerAO.
type TickRateConfig struct {
	Rate           int  `yaml:"rate"`
	UseTickerAO    bool `yaml:"useTickerAO"`
	TickerQueueCap int  `yaml:"tickerQueueCap"`
}

// FrameworkConfig is the complete set of startup parameters for one running
// framework instance (rtef.FromConfig builds a Framework from one of these).
type FrameworkConfig struct {
	Version       string               `yaml:"version,omitempty"`
	MaxSignal     uint32               `yaml:"maxSignal"`
	Pools         []PoolConfig         `yaml:"pools"`
	ActiveObjects []ActiveObjectConfig `yaml:"activeObjects"`
	TickRates     []TickRateConfig     `yaml:"tickRates"`
	TraceLevel    string               `yaml:"traceLevel,omitempty"`
}

// Level maps TraceLevel to a logiface.Level, defaulting to LevelInformational
// when unset or unrecognized (a deliberately permissive default, since a bad
// config value should degrade logging, not refuse to start).
func (c *FrameworkConfig) Level() logiface.Level {
	switch c.TraceLevel {
	case "emerg":
		return logiface.LevelEmergency
	case "alert":
		return logiface.LevelAlert
	case "crit":
		return logiface.LevelCritical
	case "err":
		return logiface.LevelError
	case "warning":
		return logiface.LevelWarning
	case "notice":
		return logiface.LevelNotice
	case "debug":
		return logiface.LevelDebug
	case "trace":
		return logiface.LevelTrace
	case "disabled":
		return logiface.LevelDisabled
	default:
		return logiface.LevelInformational
	}
}

// Validate checks required fields, ascending pool ordering, and priority
// uniqueness before the configuration is used to build anything.
func (c *FrameworkConfig) Validate() error {
	if c.MaxSignal == 0 {
		return errors.New("maxSignal is required")
	}
	if len(c.Pools) == 0 {
		return errors.New("at least one pool is required")
	}
	lastSize := 0
	for i, p := range c.Pools {
		if p.Count <= 0 {
			return fmt.Errorf("pool %d: count must be positive", i)
		}
		if p.BlockSize <= lastSize {
			return fmt.Errorf("pool %d: blockSize %d must exceed the previous pool's %d", i, p.BlockSize, lastSize)
		}
		lastSize = p.BlockSize
	}

	seenPrio := make(map[int]string)
	for _, ao := range c.ActiveObjects {
		if ao.Name == "" {
			return errors.New("active object name is required")
		}
		if ao.Priority <= 0 {
			return fmt.Errorf("active object %q: priority must be positive", ao.Name)
		}
		if other, ok := seenPrio[ao.Priority]; ok {
			return fmt.Errorf("active objects %q and %q both claim priority %d", other, ao.Name, ao.Priority)
		}
		seenPrio[ao.Priority] = ao.Name
		if ao.QueueCap <= 0 {
			return fmt.Errorf("active object %q: queueCap must be positive", ao.Name)
		}
	}

	seenRate := make(map[int]bool)
	for _, tr := range c.TickRates {
		if tr.Rate < 0 {
			return fmt.Errorf("tick rate %d: rate must be non-negative", tr.Rate)
		}
		if seenRate[tr.Rate] {
			return fmt.Errorf("tick rate %d registered more than once", tr.Rate)
		}
		seenRate[tr.Rate] = true
	}

	return nil
}

// Load reads and validates a FrameworkConfig from a YAML file at path.
func Load(path string) (*FrameworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var cfg FrameworkConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}
