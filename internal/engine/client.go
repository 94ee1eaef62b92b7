// internal/engine/client.go
package engine

import (
	"errors"
	"fmt"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/rackmond/internal/frame"
)

// NewClient returns a goburrow modbus.Client that issues one-shot commands
// to addr through e, outside any poll schedule.
func NewClient(e *Engine, addr uint8, opts Options) modbus.Client {
	return modbus.NewClient2(&packager{addr: addr}, &transporter{e: e, opts: opts})
}

// packager implements modbus.Packager with the RTU codec.
type packager struct {
	addr uint8
}

func (p *packager) Encode(pdu *modbus.ProtocolDataUnit) ([]byte, error) {
	var m frame.Message
	if err := frame.Encode(&m, frame.Frame{Addr: p.addr, Function: pdu.FunctionCode, Data: pdu.Data}); err != nil {
		return nil, err
	}
	return append([]byte(nil), m.Bytes()...), nil
}

// Decode hands exception replies back as plain PDUs so the client reports
// them as *modbus.ModbusError.
func (p *packager) Decode(adu []byte) (*modbus.ProtocolDataUnit, error) {
	var m frame.Message
	m.SetBytes(adu)
	f, err := frame.Decode(&m)
	if err != nil {
		var fe *frame.Error
		if errors.As(err, &fe) && fe.Kind == frame.ErrException {
			return &modbus.ProtocolDataUnit{
				FunctionCode: fe.Exception.FunctionCode,
				Data:         []byte{fe.Exception.ExceptionCode},
			}, nil
		}
		return nil, err
	}
	return f.PDU(), nil
}

func (p *packager) Verify(aduRequest, aduResponse []byte) error {
	if len(aduResponse) < frame.MinADUSize {
		return &frame.Error{Kind: frame.ErrShort, Len: len(aduResponse)}
	}
	if aduResponse[0] != aduRequest[0] {
		return &frame.Error{
			Kind: frame.ErrAddress,
			Len:  len(aduResponse),
			Got:  uint16(aduResponse[0]),
			Want: uint16(aduRequest[0]),
		}
	}
	return nil
}

// transporter implements modbus.Transporter on the bus lock.
type transporter struct {
	e    *Engine
	opts Options
}

func (t *transporter) Send(aduRequest []byte) ([]byte, error) {
	var out, in frame.Message
	out.SetBytes(aduRequest)
	req, err := frame.Decode(&out)
	if err != nil {
		return nil, err
	}
	if t.e.ignored.Contains(req.Addr) {
		t.e.stats.ignored.Inc()
		return nil, ignoredErr(req.Addr)
	}
	if req.Addr == 0 {
		return t.broadcast(&out, req)
	}

	expect := t.opts.ResponseLen
	if expect == 0 {
		expect = frame.ResponseLen(req)
	}
	if err := t.e.exchange(&out, &in, expect, t.opts); err != nil {
		return nil, err
	}
	return append([]byte(nil), in.Bytes()...), nil
}

// broadcast writes req without waiting for a reply and hands the client
// the acknowledgement a slave would have sent. Only writes may be broadcast.
func (t *transporter) broadcast(out *frame.Message, req frame.Frame) ([]byte, error) {
	ack := frame.Frame{Addr: 0, Function: req.Function}
	switch req.Function {
	case modbus.FuncCodeWriteSingleCoil, modbus.FuncCodeWriteSingleRegister:
		ack.Data = req.Data
	case modbus.FuncCodeWriteMultipleCoils, modbus.FuncCodeWriteMultipleRegisters:
		if len(req.Data) < 4 {
			return nil, &frame.Error{Kind: frame.ErrShort, Len: len(req.Data)}
		}
		ack.Data = req.Data[:4]
	default:
		return nil, fmt.Errorf("engine: function 0x%02x cannot be broadcast", req.Function)
	}

	var in frame.Message
	if err := t.e.exchange(out, &in, 0, t.opts); err != nil {
		return nil, err
	}
	if err := frame.Encode(&in, ack); err != nil {
		return nil, err
	}
	return append([]byte(nil), in.Bytes()...), nil
}
