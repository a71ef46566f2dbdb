package orch

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickVisitor
)

// Policy decides what happens to a visitor whose signal buffer is full.
// kind is the outbound message type.
type Policy interface {
	OnBackpressure(kind string) BackpressureAction
}

// SimplePolicy drops views, since the next snapshot supersedes them, and kicks
// the visitor when negotiation messages are lost.
type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(kind string) BackpressureAction {
	if kind == "view" {
		return DropFrame
	}
	return KickVisitor
}
