// SPDX-License-Identifier: MIT

package playback

import "github.com/jonahgcarpenter/aprilslilpugs/live/internal/fsm"

// Trigger is the controller-level input derived from an Event or from attach.
type Trigger string

const (
	TriggerUnsupported  Trigger = "unsupported"
	TriggerAttach       Trigger = "attach"
	TriggerReady        Trigger = "ready"
	TriggerNonFatal     Trigger = "error_nonfatal"
	TriggerFatalNetwork Trigger = "fatal_network"
	TriggerFatalMedia   Trigger = "fatal_media"
	TriggerFatalOther   Trigger = "fatal_other"
)

var transitions = fsm.MustTable(buildTransitions())

func buildTransitions() []fsm.Transition[State, Trigger] {
	edges := []fsm.Transition[State, Trigger]{
		{From: StateInitializing, Event: TriggerUnsupported, To: StateUnsupported},
		{From: StateInitializing, Event: TriggerAttach, To: StateAttached},
	}
	// Offline and Unsupported have no outgoing edges.
	for _, from := range []State{StateAttached, StateRecoveringNetwork, StateRecoveringMedia} {
		edges = append(edges,
			fsm.Transition[State, Trigger]{From: from, Event: TriggerReady, To: StateAttached},
			fsm.Transition[State, Trigger]{From: from, Event: TriggerNonFatal, To: from},
			fsm.Transition[State, Trigger]{From: from, Event: TriggerFatalNetwork, To: StateRecoveringNetwork},
			fsm.Transition[State, Trigger]{From: from, Event: TriggerFatalMedia, To: StateRecoveringMedia},
			fsm.Transition[State, Trigger]{From: from, Event: TriggerFatalOther, To: StateOffline},
		)
	}
	return edges
}

// TriggerFor classifies an engine event. Unknown kinds map to "".
func TriggerFor(ev Event) Trigger {
	switch ev.Kind {
	case KindManifestReady, KindMetadataLoaded:
		return TriggerReady
	case KindError:
		if !ev.Fatal {
			return TriggerNonFatal
		}
		switch ev.Category {
		case CategoryNetwork:
			return TriggerFatalNetwork
		case CategoryMedia:
			return TriggerFatalMedia
		default:
			return TriggerFatalOther
		}
	}
	return ""
}

// CommandFor returns the engine command issued when trigger fires.
func CommandFor(trigger Trigger) Command {
	switch trigger {
	case TriggerAttach:
		return CommandAttach
	case TriggerReady:
		return CommandAutoplay
	case TriggerFatalNetwork:
		return CommandStartLoad
	case TriggerFatalMedia:
		return CommandRecoverMedia
	case TriggerFatalOther:
		return CommandRelease
	}
	return CommandNone
}

// Next is the pure transition function. ok is false when the trigger is
// ignored in from, in which case the state is unchanged and nothing is issued.
func Next(from State, trigger Trigger) (to State, cmd Command, ok bool) {
	t, found := transitions.Lookup(from, trigger)
	if !found {
		return from, CommandNone, false
	}
	return t.To, CommandFor(trigger), true
}
