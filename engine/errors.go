package engine

import "errors"

// ErrInvalidState is returned when a host operation is called in a lifecycle
// phase that does not allow it (e.g. starting a stream that is already
// running, or loading a track while a stream is active).
var ErrInvalidState = errors.New("engine: invalid state")

// ErrStreamOpen is returned when the platform audio backend refuses the
// requested sample rate/channels or the device is unavailable. The engine's
// lifecycle state is left unchanged on this error.
var ErrStreamOpen = errors.New("engine: stream open failed")
