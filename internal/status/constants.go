// internal/status/constants.go
package status

// ---- HEALTH CODES ----

// HealthUnknown represents a device that has not been polled yet.
const HealthUnknown uint16 = 0

// HealthOK represents a device whose last poll succeeded.
const HealthOK uint16 = 1

// HealthError represents a device whose last poll failed.
const HealthError uint16 = 2

// HealthStale represents a healthy device whose data aged past its limit.
const HealthStale uint16 = 3

// HealthDisabled represents an ignored address.
const HealthDisabled uint16 = 4

// ---- ERROR CODES ----

// CodeOK means no error.
const CodeOK uint16 = 0

// CodeGeneric is used when an error exposes no better code.
const CodeGeneric uint16 = 1

// CodeTimeout is a read that expired before the response arrived.
const CodeTimeout uint16 = 2

// CodeTransport is any other serial line failure.
const CodeTransport uint16 = 3

// CodeFrame is a malformed, truncated or checksum-failed response.
const CodeFrame uint16 = 4

// CodeIgnored is a command refused because the address is ignored.
const CodeIgnored uint16 = 5

// CodeExceptionBase is OR-ed with the modbus exception code.
const CodeExceptionBase uint16 = 0x100

// HealthName returns a short label for a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthUnknown:
		return "unknown"
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	}
	return "invalid"
}
