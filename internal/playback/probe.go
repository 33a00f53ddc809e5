// SPDX-License-Identifier: MIT

package playback

// Environment reports the runtime's playback capabilities.
type Environment interface {
	// AdaptiveEngineSupported reports whether the adaptive streaming engine can run.
	AdaptiveEngineSupported() bool
	// CanPlayType reports whether the native media element plays the MIME type.
	CanPlayType(mime string) bool
}

// Probe selects the playback strategy for the environment.
// The adaptive engine wins over native playback.
func Probe(env Environment) Strategy {
	if env == nil {
		return StrategyUnsupported
	}
	if env.AdaptiveEngineSupported() {
		return StrategyAdaptiveEngine
	}
	if env.CanPlayType(ManifestMIME) {
		return StrategyNativePlayback
	}
	return StrategyUnsupported
}

// Capabilities is a static Environment.
type Capabilities struct {
	Adaptive    bool
	NativeTypes []string
}

// AdaptiveEngineSupported implements Environment.
func (c Capabilities) AdaptiveEngineSupported() bool { return c.Adaptive }

// CanPlayType implements Environment.
func (c Capabilities) CanPlayType(mime string) bool {
	for _, t := range c.NativeTypes {
		if t == mime {
			return true
		}
	}
	return false
}
