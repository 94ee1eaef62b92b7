// internal/frame/frame.go
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/goburrow/modbus"
	"github.com/sigurn/crc16"
)

// RTU ADU geometry.
const (
	MaxADUSize = 256
	MinADUSize = 4 // addr + fc + crc
	MaxPDUData = MaxADUSize - MinADUSize

	// ExceptionSize is the full ADU size of an exception response.
	ExceptionSize = 5
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// CRC16 returns the Modbus RTU checksum of b.
func CRC16(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}

// Frame is the logical content of an RTU frame.
type Frame struct {
	Addr     uint8
	Function byte
	Data     []byte
}

// PDU returns the frame as a goburrow protocol data unit.
func (f Frame) PDU() *modbus.ProtocolDataUnit {
	return &modbus.ProtocolDataUnit{FunctionCode: f.Function, Data: f.Data}
}

func (f Frame) String() string {
	return fmt.Sprintf("addr=0x%02x fc=%d data=[% x]", f.Addr, f.Function, f.Data)
}

// Message is a fixed capacity wire buffer.
// Outbound messages are filled by Encode; inbound ones by a transport read.
type Message struct {
	Raw  [MaxADUSize]byte
	Len  int
	Addr uint8
}

// Bytes returns the logical part of the raw buffer.
func (m *Message) Bytes() []byte {
	return m.Raw[:m.Len]
}

// SetBytes copies b into the raw buffer. Input longer than the buffer is cut
// and will fail Decode.
func (m *Message) SetBytes(b []byte) {
	m.Len = copy(m.Raw[:], b)
	if m.Len > 0 {
		m.Addr = m.Raw[0]
	}
}

// Reset clears the logical length.
func (m *Message) Reset() {
	m.Len = 0
	m.Addr = 0
}

// Encode serializes f into m.
//
//	Addr     : 1 byte
//	Function : 1 byte
//	Data     : 0..252 bytes
//	CRC      : 2 bytes, low byte first
func Encode(m *Message, f Frame) error {
	if len(f.Data) > MaxPDUData {
		return fmt.Errorf("frame: data length %d exceeds %d", len(f.Data), MaxPDUData)
	}
	n := 0
	m.Raw[n] = f.Addr
	n++
	m.Raw[n] = f.Function
	n++
	n += copy(m.Raw[n:], f.Data)
	binary.LittleEndian.PutUint16(m.Raw[n:], CRC16(m.Raw[:n]))
	n += 2

	m.Len = n
	m.Addr = f.Addr
	return nil
}

// Decode validates m and extracts its logical frame.
// The returned Data is a copy; m is never modified.
func Decode(m *Message) (Frame, error) {
	if m.Len < MinADUSize {
		return Frame{}, &Error{Kind: ErrShort, Len: m.Len}
	}
	if m.Len > MaxADUSize {
		return Frame{}, &Error{Kind: ErrLength, Len: m.Len}
	}
	raw := m.Raw[:m.Len]
	got := binary.LittleEndian.Uint16(raw[m.Len-2:])
	if want := CRC16(raw[:m.Len-2]); got != want {
		return Frame{}, &Error{Kind: ErrCRC, Len: m.Len, Got: got, Want: want}
	}

	f := Frame{
		Addr:     raw[0],
		Function: raw[1],
		Data:     append([]byte(nil), raw[2:m.Len-2]...),
	}
	if f.Function&0x80 != 0 {
		var code byte
		if len(f.Data) > 0 {
			code = f.Data[0]
		}
		return Frame{}, &Error{
			Kind: ErrException,
			Len:  m.Len,
			Exception: &modbus.ModbusError{
				FunctionCode:  f.Function,
				ExceptionCode: code,
			},
		}
	}
	return f, nil
}

// DecodeResponse decodes m and checks it answers req.
func DecodeResponse(m *Message, req Frame) (Frame, error) {
	f, err := Decode(m)
	if err != nil {
		return Frame{}, err
	}
	if f.Addr != req.Addr {
		return Frame{}, &Error{Kind: ErrAddress, Len: m.Len, Got: uint16(f.Addr), Want: uint16(req.Addr)}
	}
	if f.Function != req.Function {
		return Frame{}, &Error{Kind: ErrFunction, Len: m.Len, Got: uint16(f.Function), Want: uint16(req.Function)}
	}
	if want := ResponseLen(req); want != 0 && m.Len != want {
		return Frame{}, &Error{Kind: ErrLength, Len: m.Len, Want: uint16(want)}
	}
	return f, nil
}

// ResponseLen returns the expected ADU size of a normal response to req,
// or 0 when the function code does not fix it.
func ResponseLen(req Frame) int {
	count := func() int {
		if len(req.Data) < 4 {
			return 0
		}
		return int(binary.BigEndian.Uint16(req.Data[2:4]))
	}

	switch req.Function {
	case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs:
		n := count()
		if n == 0 {
			return 0
		}
		return MinADUSize + 1 + (n+7)/8
	case modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		n := count()
		if n == 0 {
			return 0
		}
		return MinADUSize + 1 + n*2
	case modbus.FuncCodeReadWriteMultipleRegisters:
		// read quantity is the first count field
		n := count()
		if n == 0 {
			return 0
		}
		return MinADUSize + 1 + n*2
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:
		return MinADUSize + 4
	case modbus.FuncCodeMaskWriteRegister:
		return MinADUSize + 6
	}
	return 0
}
