package rt

import (
	"sync/atomic"

	"github.com/tliron/commonlog"
)

var fwdLog = commonlog.GetLogger("tern.rt.forwarding")

// ---------------------------------------------------------------------------
// Forwarding events
// ---------------------------------------------------------------------------

// ForwardingEventKind identifies what a forwarding event reports.
type ForwardingEventKind int

const (
	// ForwardingAttempt fires when the pipeline is entered for a send.
	ForwardingAttempt ForwardingEventKind = iota
	// ForwardingRedirect fires when stage 1 produced an alternate target.
	ForwardingRedirect
	// ForwardingLoop fires when the depth limit was exceeded.
	ForwardingLoop
	// ForwardingUnrecognized fires when every stage was exhausted.
	ForwardingUnrecognized
)

func (k ForwardingEventKind) String() string {
	switch k {
	case ForwardingAttempt:
		return "attempt"
	case ForwardingRedirect:
		return "redirect"
	case ForwardingLoop:
		return "loop-detected"
	case ForwardingUnrecognized:
		return "does-not-recognize"
	}
	return "unknown"
}

// ForwardingEvent is a diagnostic record emitted by the forwarding
// pipeline.
type ForwardingEvent struct {
	Kind     ForwardingEventKind
	Object   *Object
	Selector *Selector
	Target   *Object // set for redirect events
	Depth    int
}

// ForwardingObserver receives forwarding events. The observer must not
// block; it runs on the sending goroutine.
type ForwardingObserver func(ForwardingEvent)

var forwardingObserver atomic.Pointer[ForwardingObserver]

// SetForwardingObserver installs an observer for forwarding events. A nil
// observer removes the current one.
func SetForwardingObserver(obs ForwardingObserver) {
	if obs == nil {
		forwardingObserver.Store(nil)
		return
	}
	forwardingObserver.Store(&obs)
}

func emitForwardingEvent(ev ForwardingEvent) {
	switch ev.Kind {
	case ForwardingLoop:
		fwdLog.Errorf("forwarding loop for %s on %s at depth %d",
			ev.Selector.Name(), ev.Object.Class().Name(), ev.Depth)
	case ForwardingUnrecognized:
		fwdLog.Errorf("%s does not recognize %s",
			ev.Object.Class().Name(), ev.Selector.Name())
	default:
		fwdLog.Debugf("forwarding %s: %s on %s (depth %d)",
			ev.Kind, ev.Selector.Name(), ev.Object.Class().Name(), ev.Depth)
	}
	if p := forwardingObserver.Load(); p != nil {
		(*p)(ev)
	}
}
