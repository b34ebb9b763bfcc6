package environment

import "time"

// SetClock overrides the clock used to stamp layers.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
