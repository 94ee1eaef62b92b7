// internal/config/normalize.go
package config

import "strings"

const (
	DefaultBaudrate  = 19200
	DefaultTimeoutMs = 500
	DefaultType      = "uart"
	DefaultParity    = "N"
	DefaultStopBits  = 1
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Rackmon.LogLevel == "" {
		cfg.Rackmon.LogLevel = "info"
	}

	for bi := range cfg.Rackmon.Buses {
		b := &cfg.Rackmon.Buses[bi]

		if b.Type == "" {
			b.Type = DefaultType
		}
		b.Type = strings.ToLower(b.Type)

		if b.Parity == "" {
			b.Parity = DefaultParity
		}
		b.Parity = strings.ToUpper(b.Parity)

		if b.Baudrate == 0 {
			b.Baudrate = DefaultBaudrate
		}
		if b.StopBits == 0 {
			b.StopBits = DefaultStopBits
		}
		if b.TimeoutMs == 0 {
			b.TimeoutMs = DefaultTimeoutMs
		}

		// Poll level baudrate 0 stays 0: the engine reads it as "bus default".
	}
}
