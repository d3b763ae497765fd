package app

import "github.com/dkeye/Chat/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy holds the tunable decisions of the broker.
type Policy interface {
	OnBackpressure(room *core.ChatRoom, sid core.SessionID) BackpressureAction
	// AdmitJoin reports whether a join into room may proceed.
	AdmitJoin(room *core.ChatRoom) bool
	// DeleteWhenEmpty reports whether an emptied room is removed.
	DeleteWhenEmpty(room *core.ChatRoom) bool
}

type SimplePolicy struct {
	DropSlow        bool
	EnforceCapacity bool
	DeleteEmpty     bool
}

func (p SimplePolicy) OnBackpressure(*core.ChatRoom, core.SessionID) BackpressureAction {
	if p.DropSlow {
		return DropFrame
	}
	return KickMember
}

func (p SimplePolicy) AdmitJoin(room *core.ChatRoom) bool {
	return !p.EnforceCapacity || !room.Full()
}

func (p SimplePolicy) DeleteWhenEmpty(room *core.ChatRoom) bool {
	return p.DeleteEmpty && !room.Seeded() && room.MemberCount() == 0
}
