// internal/engine/client_test.go
package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/rackmond/internal/device/devicetest"
	"github.com/tamzrod/rackmond/internal/frame"
)

func TestClient_ReadHoldingRegisters(t *testing.T) {
	line := devicetest.New(slave(map[uint8]handler{0x11: holding}))
	e := newTestEngine(t, line, Config{})

	c := NewClient(e, 0x11, Options{})
	got, err := c.ReadHoldingRegisters(0, 2)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters err=%v", err)
	}
	want := []byte{0x11, 0x00, 0x11, 0x01}
	if string(got) != string(want) {
		t.Fatalf("got=[% x] want=[% x]", got, want)
	}
}

func TestClient_WriteSingleRegister(t *testing.T) {
	line := devicetest.New(slave(map[uint8]handler{0x11: echo}))
	e := newTestEngine(t, line, Config{})

	c := NewClient(e, 0x11, Options{})
	if _, err := c.WriteSingleRegister(0x0010, 0x1234); err != nil {
		t.Fatalf("WriteSingleRegister err=%v", err)
	}
	writes := line.Writes()
	if len(writes) != 1 {
		t.Fatalf("writes=%d", len(writes))
	}
	want := frame.WriteSingleRegister(0x11, 0x0010, 0x1234)
	var m frame.Message
	_ = frame.Encode(&m, want)
	if string(writes[0]) != string(m.Bytes()) {
		t.Fatalf("wire=[% x] want=[% x]", writes[0], m.Bytes())
	}
}

func TestClient_Exception(t *testing.T) {
	line := devicetest.New(slave(map[uint8]handler{0x11: func(req frame.Frame) frame.Frame {
		return frame.Frame{Addr: req.Addr, Function: req.Function | 0x80, Data: []byte{modbus.ExceptionCodeServerDeviceBusy}}
	}}))
	e := newTestEngine(t, line, Config{})

	_, err := NewClient(e, 0x11, Options{}).ReadInputRegisters(0, 4)
	var me *modbus.ModbusError
	if !errors.As(err, &me) || me.ExceptionCode != modbus.ExceptionCodeServerDeviceBusy {
		t.Fatalf("expected busy exception, got %v", err)
	}
}

func TestClient_Ignored(t *testing.T) {
	line := devicetest.New(nil)
	e := newTestEngine(t, line, Config{Ignored: []uint8{0x11}})

	_, err := NewClient(e, 0x11, Options{}).ReadHoldingRegisters(0, 1)
	if !errors.Is(err, ErrIgnored) {
		t.Fatalf("expected ErrIgnored, got %v", err)
	}
}

func TestClient_BroadcastWrites(t *testing.T) {
	line := devicetest.New(nil)
	e := newTestEngine(t, line, Config{Timeout: time.Second})
	c := NewClient(e, 0, Options{})

	start := time.Now()
	if _, err := c.WriteSingleRegister(0x0010, 0x1234); err != nil {
		t.Fatalf("broadcast WriteSingleRegister err=%v", err)
	}
	if _, err := c.WriteMultipleRegisters(0x0020, 2, []byte{0, 1, 0, 2}); err != nil {
		t.Fatalf("broadcast WriteMultipleRegisters err=%v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("broadcast waited for a response")
	}
	if n := len(line.Writes()); n != 2 {
		t.Fatalf("writes=%d want=2", n)
	}

	if _, err := c.ReadHoldingRegisters(0, 1); err == nil {
		t.Fatalf("expected error for broadcast read")
	}
	if n := len(line.Writes()); n != 2 {
		t.Fatalf("broadcast read reached the bus")
	}
}
