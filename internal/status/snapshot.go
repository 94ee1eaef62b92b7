// internal/status/snapshot.go
package status

import "time"

// Snapshot is the health of one slave address.
// It is a value; callers replace it, never mutate a shared copy.
type Snapshot struct {
	Health              uint16
	LastErrorCode       uint16
	ConsecutiveFailures uint32
	LastAttempt         time.Time
	LastSuccess         time.Time
}

// Next folds one poll attempt into s.
func (s Snapshot) Next(err error, at time.Time) Snapshot {
	s.LastAttempt = at

	code := Code(err)
	switch {
	case err == nil:
		s.Health = HealthOK
		s.LastErrorCode = CodeOK
		s.ConsecutiveFailures = 0
		s.LastSuccess = at
	case code == CodeIgnored:
		// Ignored addresses are not failures.
		s.Health = HealthDisabled
		s.LastErrorCode = code
		s.ConsecutiveFailures = 0
	default:
		s.Health = HealthError
		s.LastErrorCode = code
		s.ConsecutiveFailures++
	}
	return s
}

// HealthAt reports HealthStale for an OK device whose last success is older
// than maxAge. A zero maxAge disables aging.
func (s Snapshot) HealthAt(now time.Time, maxAge time.Duration) uint16 {
	if s.Health == HealthOK && maxAge > 0 && now.Sub(s.LastSuccess) > maxAge {
		return HealthStale
	}
	return s.Health
}
