package config

import "testing"

func validConfig() *FrameworkConfig {
	return &FrameworkConfig{
		MaxSignal: 100,
		Pools: []PoolConfig{
			{BlockSize: 8, Count: 10},
			{BlockSize: 32, Count: 4},
		},
		ActiveObjects: []ActiveObjectConfig{
			{Name: "blinky", Priority: 1, QueueCap: 4},
			{Name: "watchdog", Priority: 2, QueueCap: 4},
		},
		TickRates: []TickRateConfig{
			{Rate: 0},
		},
	}
}

func TestFrameworkConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *FrameworkConfig)
		wantErr bool
	}{
		{name: "minimal valid", mutate: func(c *FrameworkConfig) {}, wantErr: false},
		{name: "missing maxSignal", mutate: func(c *FrameworkConfig) { c.MaxSignal = 0 }, wantErr: true},
		{name: "no pools", mutate: func(c *FrameworkConfig) { c.Pools = nil }, wantErr: true},
		{name: "pool non-positive count", mutate: func(c *FrameworkConfig) { c.Pools[1].Count = 0 }, wantErr: true},
		{name: "pools out of order", mutate: func(c *FrameworkConfig) { c.Pools[1].BlockSize = 4 }, wantErr: true},
		{name: "duplicate pool size", mutate: func(c *FrameworkConfig) { c.Pools[1].BlockSize = 8 }, wantErr: true},
		{name: "active object missing name", mutate: func(c *FrameworkConfig) { c.ActiveObjects[0].Name = "" }, wantErr: true},
		{name: "active object non-positive priority", mutate: func(c *FrameworkConfig) { c.ActiveObjects[0].Priority = 0 }, wantErr: true},
		{name: "duplicate priority", mutate: func(c *FrameworkConfig) { c.ActiveObjects[1].Priority = 1 }, wantErr: true},
		{name: "active object non-positive queueCap", mutate: func(c *FrameworkConfig) { c.ActiveObjects[0].QueueCap = 0 }, wantErr: true},
		{name: "negative tick rate", mutate: func(c *FrameworkConfig) { c.TickRates[0].Rate = -1 }, wantErr: true},
		{
			name: "duplicate tick rate",
			mutate: func(c *FrameworkConfig) {
				c.TickRates = append(c.TickRates, TickRateConfig{Rate: 0})
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFrameworkConfigLevel(t *testing.T) {
	debug := (&FrameworkConfig{TraceLevel: "debug"}).Level()
	trace := (&FrameworkConfig{TraceLevel: "trace"}).Level()
	unset := (&FrameworkConfig{}).Level()
	bogus := (&FrameworkConfig{TraceLevel: "not-a-level"}).Level()

	if debug == trace {
		t.Fatal("debug and trace must map to different levels")
	}
	if unset != bogus {
		t.Fatal("an unset or unrecognized level must fall back to the same default")
	}
}
