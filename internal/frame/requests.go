// internal/frame/requests.go
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/goburrow/modbus"
)

// Quantity limits from the Modbus application protocol.
const (
	MaxReadBits      = 2000
	MaxReadRegisters = 125
	MaxWriteRegs     = 123
)

func readRequest(addr uint8, fc byte, start, qty uint16, max uint16) (Frame, error) {
	if qty == 0 || qty > max {
		return Frame{}, fmt.Errorf("frame: fc %d quantity %d out of range 1..%d", fc, qty, max)
	}
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], start)
	binary.BigEndian.PutUint16(data[2:4], qty)
	return Frame{Addr: addr, Function: fc, Data: data}, nil
}

// ReadCoils builds an FC 1 request.
func ReadCoils(addr uint8, start, qty uint16) (Frame, error) {
	return readRequest(addr, modbus.FuncCodeReadCoils, start, qty, MaxReadBits)
}

// ReadDiscreteInputs builds an FC 2 request.
func ReadDiscreteInputs(addr uint8, start, qty uint16) (Frame, error) {
	return readRequest(addr, modbus.FuncCodeReadDiscreteInputs, start, qty, MaxReadBits)
}

// ReadHoldingRegisters builds an FC 3 request.
func ReadHoldingRegisters(addr uint8, start, qty uint16) (Frame, error) {
	return readRequest(addr, modbus.FuncCodeReadHoldingRegisters, start, qty, MaxReadRegisters)
}

// ReadInputRegisters builds an FC 4 request.
func ReadInputRegisters(addr uint8, start, qty uint16) (Frame, error) {
	return readRequest(addr, modbus.FuncCodeReadInputRegisters, start, qty, MaxReadRegisters)
}

// Read builds a read request for any of FC 1..4.
func Read(addr uint8, fc byte, start, qty uint16) (Frame, error) {
	switch fc {
	case modbus.FuncCodeReadCoils:
		return ReadCoils(addr, start, qty)
	case modbus.FuncCodeReadDiscreteInputs:
		return ReadDiscreteInputs(addr, start, qty)
	case modbus.FuncCodeReadHoldingRegisters:
		return ReadHoldingRegisters(addr, start, qty)
	case modbus.FuncCodeReadInputRegisters:
		return ReadInputRegisters(addr, start, qty)
	}
	return Frame{}, fmt.Errorf("frame: unsupported read function code %d", fc)
}

// WriteSingleRegister builds an FC 6 request.
func WriteSingleRegister(addr uint8, reg, value uint16) Frame {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], reg)
	binary.BigEndian.PutUint16(data[2:4], value)
	return Frame{Addr: addr, Function: modbus.FuncCodeWriteSingleRegister, Data: data}
}

// WriteMultipleRegisters builds an FC 16 request.
func WriteMultipleRegisters(addr uint8, start uint16, values []uint16) (Frame, error) {
	if len(values) == 0 || len(values) > MaxWriteRegs {
		return Frame{}, fmt.Errorf("frame: write quantity %d out of range 1..%d", len(values), MaxWriteRegs)
	}
	data := make([]byte, 5+2*len(values))
	binary.BigEndian.PutUint16(data[0:2], start)
	binary.BigEndian.PutUint16(data[2:4], uint16(len(values)))
	data[4] = byte(2 * len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(data[5+2*i:], v)
	}
	return Frame{Addr: addr, Function: modbus.FuncCodeWriteMultipleRegisters, Data: data}, nil
}

// Registers unpacks an FC 3/4 response payload.
func Registers(resp Frame) ([]uint16, error) {
	p, err := payload(resp)
	if err != nil {
		return nil, err
	}
	if len(p)%2 != 0 {
		return nil, errors.New("frame: register byte count not even")
	}
	out := make([]uint16, len(p)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(p[2*i:])
	}
	return out, nil
}

// Bits unpacks an FC 1/2 response payload into count values.
func Bits(resp Frame, count int) ([]bool, error) {
	p, err := payload(resp)
	if err != nil {
		return nil, err
	}
	if len(p) < (count+7)/8 {
		return nil, &Error{Kind: ErrLength, Len: len(p), Want: uint16((count + 7) / 8)}
	}
	out := make([]bool, count)
	for i := range out {
		out[i] = p[i/8]&(1<<(i%8)) != 0
	}
	return out, nil
}

// payload strips the byte count prefix of a read response.
func payload(resp Frame) ([]byte, error) {
	if len(resp.Data) < 1 {
		return nil, &Error{Kind: ErrShort, Len: len(resp.Data)}
	}
	n := int(resp.Data[0])
	if len(resp.Data)-1 != n {
		return nil, &Error{Kind: ErrLength, Len: len(resp.Data) - 1, Want: uint16(n)}
	}
	return resp.Data[1:], nil
}
