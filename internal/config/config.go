// internal/config/config.go
package config

type Config struct {
	Rackmon RackmonConfig `yaml:"rackmon"`
}

type RackmonConfig struct {
	LogLevel string      `yaml:"log_level"`
	Buses    []BusConfig `yaml:"buses"`
}

// ---- BUS ----

type BusConfig struct {
	ID       string `yaml:"id"`
	Device   string `yaml:"device"`
	Type     string `yaml:"type"` // uart | rs485
	Baudrate int    `yaml:"baudrate"`
	Parity   string `yaml:"parity"` // N | E | O
	StopBits int    `yaml:"stop_bits"`

	TimeoutMs  int `yaml:"timeout_ms"`
	MinDelayMs int `yaml:"min_delay_ms"`

	// Addresses never sent to, e.g. known absent slots.
	IgnoredAddresses []uint8 `yaml:"ignored_addresses"`

	Polls []PollConfig `yaml:"polls"`
}

// ---- POLL ----

type PollConfig struct {
	ID           string  `yaml:"id"`
	IntervalMs   int     `yaml:"interval_ms"`
	Addresses    []uint8 `yaml:"addresses"`
	Retries      int     `yaml:"retries"`
	RetryDelayMs int     `yaml:"retry_delay_ms"`
	SettleMs     int     `yaml:"settle_ms"`

	// Baudrate overrides the bus baudrate for this group; 0 = bus default.
	Baudrate int `yaml:"baudrate"`

	Reads []ReadConfig `yaml:"reads"`
}

// ---- READ GEOMETRY ----

type ReadConfig struct {
	FC       uint8  `yaml:"fc"`
	Address  uint16 `yaml:"address"`
	Quantity uint16 `yaml:"quantity"`
}
