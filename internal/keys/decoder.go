package keys

import "fmt"

const (
	byteEnter     = 0x0D
	byteBackspace = 0x7F
	byteEscape    = 0x1B
	byteSS3       = 0x4F // 'O'
	byteCSI       = 0x5B // '['
	byteTilde     = 0x7E
)

type decodeState uint8

const (
	stateNormal decodeState = iota
	stateEscape
	stateCSI
	stateCSIDigit
)

var csiLetters = map[byte]Kind{
	'A': KindUp,
	'B': KindDown,
	'C': KindRight,
	'D': KindLeft,
	'H': KindHome,
	'F': KindEnd,
}

var csiDigits = map[byte]Kind{
	'5': KindPageUp,
	'6': KindPageDown,
	'2': KindInsert,
	'3': KindDelete,
}

// Decoder is a byte-at-a-time state machine for terminal key sequences.
// The zero value is ready to use. A Decoder is not safe for concurrent use.
type Decoder struct {
	state decodeState
	seq   []byte
}

// Feed consumes one byte. It returns the decoded event and true when the
// byte completes a key, or false while a sequence is still pending.
func (d *Decoder) Feed(b byte) (Event, bool) {
	switch b {
	case byteEnter:
		d.reset()
		return Key(KindEnter), true
	case byteBackspace:
		d.reset()
		return Key(KindBackspace), true
	}

	switch d.state {
	case stateEscape:
		if b == byteSS3 || b == byteCSI {
			d.seq = append(d.seq, b)
			d.state = stateCSI
			return Event{}, false
		}
		return d.unrecognized(b), true

	case stateCSI:
		if k, ok := csiLetters[b]; ok {
			d.reset()
			return Key(k), true
		}
		if isDigit(b) {
			d.seq = append(d.seq, b)
			d.state = stateCSIDigit
			return Event{}, false
		}
		return d.unrecognized(b), true

	case stateCSIDigit:
		prefix := d.seq[len(d.seq)-1]
		if k, ok := csiDigits[prefix]; ok && b == byteTilde {
			d.reset()
			return Key(k), true
		}
		return d.unrecognized(b), true
	}

	if b == byteEscape {
		d.seq = append(d.seq[:0], b)
		d.state = stateEscape
		return Event{}, false
	}
	if isPrintable(b) {
		return Printable(rune(b)), true
	}
	return d.unrecognized(b), true
}

// Pending reports whether the decoder is in the middle of a sequence.
func (d *Decoder) Pending() bool {
	return d.state != stateNormal
}

func (d *Decoder) unrecognized(b byte) Event {
	raw := make([]byte, 0, len(d.seq)+1)
	raw = append(raw, d.seq...)
	raw = append(raw, b)
	d.reset()
	return Event{
		Kind:       KindUnrecognized,
		Raw:        raw,
		Diagnostic: fmt.Sprintf("% X", raw),
	}
}

func (d *Decoder) reset() {
	d.state = stateNormal
	d.seq = d.seq[:0]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// isPrintable matches the ASCII printable set plus the whitespace controls
// a terminal can pass through in raw mode.
func isPrintable(b byte) bool {
	switch b {
	case '\t', '\n', '\v', '\f':
		return true
	}
	return b >= 0x20 && b < 0x7F
}
