package keys

import (
	"errors"
	"fmt"
	"io"
)

// NewSlot returns the single shared slot decoded events are delivered into.
func NewSlot() chan Event {
	return make(chan Event, 1)
}

// Offer puts ev into slot only if the slot is empty. It reports whether the
// event was accepted; a rejected event is gone for good.
func Offer(slot chan<- Event, ev Event) bool {
	select {
	case slot <- ev:
		return true
	default:
		return false
	}
}

// Read decodes r one byte at a time and offers every event to slot until r
// fails. Events decoded while the consumer has not drained the previous one
// are dropped, so a burst of keys faster than the consumer keeps only the
// first. Read returns nil at end of input.
func Read(r io.Reader, slot chan<- Event) error {
	var (
		dec Decoder
		buf [1]byte
	)
	for {
		n, err := r.Read(buf[:])
		if n == 1 {
			if ev, ok := dec.Feed(buf[0]); ok {
				Offer(slot, ev)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
	}
}
