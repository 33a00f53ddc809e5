// SPDX-License-Identifier: MIT

package playback

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var allStates = []State{
	StateInitializing,
	StateAttached,
	StateRecoveringNetwork,
	StateRecoveringMedia,
	StateOffline,
	StateUnsupported,
}

var activeStates = []State{StateAttached, StateRecoveringNetwork, StateRecoveringMedia}

func TestTriggerFor(t *testing.T) {
	tests := []struct {
		ev   Event
		want Trigger
	}{
		{ManifestReady(), TriggerReady},
		{MetadataLoaded(), TriggerReady},
		{ErrorEvent(CategoryNetwork, false, nil), TriggerNonFatal},
		{ErrorEvent(CategoryMedia, false, nil), TriggerNonFatal},
		{ErrorEvent(CategoryOther, false, nil), TriggerNonFatal},
		{ErrorEvent(CategoryNetwork, true, nil), TriggerFatalNetwork},
		{ErrorEvent(CategoryMedia, true, nil), TriggerFatalMedia},
		{ErrorEvent(CategoryOther, true, nil), TriggerFatalOther},
		{ErrorEvent("keySystemError", true, nil), TriggerFatalOther},
		{Event{Kind: "buffer_appended"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TriggerFor(tt.ev), "%+v", tt.ev)
	}
}

func TestNext_NonFatalKeepsState(t *testing.T) {
	for _, from := range allStates {
		to, cmd, _ := Next(from, TriggerNonFatal)
		assert.Equal(t, from, to, "from %s", from)
		assert.Equal(t, CommandNone, cmd, "from %s", from)
	}
}

func TestNext_FatalFromActiveStates(t *testing.T) {
	type result struct {
		To  State
		Cmd Command
	}
	for _, from := range activeStates {
		got := map[Trigger]result{}
		for _, trig := range []Trigger{TriggerFatalNetwork, TriggerFatalMedia, TriggerFatalOther, TriggerReady} {
			to, cmd, ok := Next(from, trig)
			assert.True(t, ok)
			got[trig] = result{to, cmd}
		}
		want := map[Trigger]result{
			TriggerFatalNetwork: {StateRecoveringNetwork, CommandStartLoad},
			TriggerFatalMedia:   {StateRecoveringMedia, CommandRecoverMedia},
			TriggerFatalOther:   {StateOffline, CommandRelease},
			TriggerReady:        {StateAttached, CommandAutoplay},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("from %s mismatch (-want +got):\n%s", from, diff)
		}
	}
}

func TestNext_TerminalStatesAbsorb(t *testing.T) {
	triggers := []Trigger{
		TriggerUnsupported, TriggerAttach, TriggerReady, TriggerNonFatal,
		TriggerFatalNetwork, TriggerFatalMedia, TriggerFatalOther,
	}
	for _, from := range []State{StateOffline, StateUnsupported} {
		for _, trig := range triggers {
			to, cmd, ok := Next(from, trig)
			assert.False(t, ok, "%s/%s", from, trig)
			assert.Equal(t, from, to)
			assert.Equal(t, CommandNone, cmd)
		}
	}
}

func TestNext_Initializing(t *testing.T) {
	to, cmd, ok := Next(StateInitializing, TriggerUnsupported)
	assert.True(t, ok)
	assert.Equal(t, StateUnsupported, to)
	assert.Equal(t, CommandNone, cmd)

	to, cmd, ok = Next(StateInitializing, TriggerAttach)
	assert.True(t, ok)
	assert.Equal(t, StateAttached, to)
	assert.Equal(t, CommandAttach, cmd)

	_, _, ok = Next(StateInitializing, TriggerFatalOther)
	assert.False(t, ok, "engine events before attach are ignored")
}

func TestTransitionsTable_OnlyActiveStatesHaveRuntimeEdges(t *testing.T) {
	for _, e := range transitions.Edges() {
		assert.False(t, e.From.Terminal(), "terminal state %s has an outgoing edge", e.From)
	}
}
