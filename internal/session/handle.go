package session

import (
	"crypto/rand"
	"encoding/hex"
)

// Handle is a session's opaque identity: a 16-byte random value,
// rendered as hex for use in the control API.
type Handle string

// NewHandle mints a fresh random handle.
func NewHandle() Handle {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return Handle(hex.EncodeToString(buf))
}

func (h Handle) String() string { return string(h) }
