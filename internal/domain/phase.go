// Package domain contains entities without logic, just meta-data
package domain

// Phase is the lifecycle phase of a visitor's avatar session.
type Phase string

const (
	PhaseInactive   Phase = "inactive"
	PhaseConnecting Phase = "connecting"
	PhaseConnected  Phase = "connected"
)

func (p Phase) Active() bool { return p != PhaseInactive }
