// internal/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
rackmon:
  log_level: debug
  buses:
    - id: psu
      device: /dev/ttyUSB0
      type: rs485
      baudrate: 19200
      parity: E
      timeout_ms: 300
      ignored_addresses: [0xa7]
      polls:
        - id: fast
          interval_ms: 1000
          addresses: [0xa4, 0xa5]
          retries: 2
          reads:
            - {fc: 3, address: 0, quantity: 8}
            - {fc: 4, address: 100, quantity: 2}
`

func TestLoad_Sample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rackmon.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate err=%v", err)
	}

	if cfg.Rackmon.LogLevel != "debug" || len(cfg.Rackmon.Buses) != 1 {
		t.Fatalf("cfg=%+v", cfg.Rackmon)
	}
	b := cfg.Rackmon.Buses[0]
	if b.Type != "rs485" || b.TimeoutMs != 300 || len(b.IgnoredAddresses) != 1 || b.IgnoredAddresses[0] != 0xa7 {
		t.Fatalf("bus=%+v", b)
	}
	p := b.Polls[0]
	if p.Retries != 2 || len(p.Addresses) != 2 || p.Addresses[1] != 0xa5 || len(p.Reads) != 2 || p.Reads[1].Address != 100 {
		t.Fatalf("poll=%+v", p)
	}
}

func TestParse_UnknownKey(t *testing.T) {
	if _, err := Parse([]byte("rackmon:\n  bogus: 1\n")); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
