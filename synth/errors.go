package synth

import "errors"

// Engine errors. Only Init surfaces errors to callers; every other
// operation on a non-ready engine is a logged no-op so caller code stays
// trivial.
var (
	// ErrAudioUnavailable means the output pipeline could not be created
	// or resumed. The engine remains uninitialized.
	ErrAudioUnavailable = errors.New("audio output is unavailable")

	// ErrEngineDestroyed means Init was called on a destroyed engine;
	// destruction is terminal and the engine must be reconstructed.
	ErrEngineDestroyed = errors.New("engine has been destroyed")
)
