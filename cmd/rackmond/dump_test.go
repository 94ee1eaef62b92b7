// cmd/rackmond/dump_test.go
package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/tamzrod/rackmond/internal/cache"
)

func TestDump(t *testing.T) {
	color.NoColor = true

	store := cache.New()
	now := time.Unix(100, 0)
	store.UpdateBlock(0xa4, 3, 0, []uint16{0x1234, 0x5678}, now.Add(-time.Second))
	store.Record(0xa4, nil, now.Add(-time.Second))
	store.Record(0xa5, errors.New("boom"), now)

	var buf bytes.Buffer
	dump(&buf, store, nil, now, time.Minute)
	out := buf.String()

	for _, want := range []string{"0xa4 ok", "0x1234", "0x5678", "0xa5 error", "failures=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump missing %q:\n%s", want, out)
		}
	}
}
