// Package keys turns a raw, unbuffered terminal byte stream into logical key
// events.
package keys

import "fmt"

// Kind identifies a logical key.
type Kind uint8

const (
	KindNone Kind = iota
	KindPrintable
	KindEnter
	KindBackspace
	KindUp
	KindDown
	KindLeft
	KindRight
	KindHome
	KindEnd
	KindPageUp
	KindPageDown
	KindInsert
	KindDelete
	KindUnrecognized
)

var kindNames = map[Kind]string{
	KindNone:         "NONE",
	KindPrintable:    "PRINTABLE",
	KindEnter:        "ENTER",
	KindBackspace:    "BACKSPACE",
	KindUp:           "UP",
	KindDown:         "DOWN",
	KindLeft:         "LEFT",
	KindRight:        "RIGHT",
	KindHome:         "HOME",
	KindEnd:          "END",
	KindPageUp:       "PAGE_UP",
	KindPageDown:     "PAGE_DOWN",
	KindInsert:       "INSERT",
	KindDelete:       "DELETE",
	KindUnrecognized: "UNRECOGNIZED",
}

// String returns the upper-case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Event is one decoded key press.
//
// Rune is set for KindPrintable. Raw holds the bytes of the offending
// sequence and Diagnostic a hex rendering of them for KindUnrecognized.
type Event struct {
	Kind       Kind
	Rune       rune
	Raw        []byte
	Diagnostic string
}

// Printable returns a printable-character event.
func Printable(r rune) Event {
	return Event{Kind: KindPrintable, Rune: r}
}

// Key returns an event for a non-character key.
func Key(k Kind) Event {
	return Event{Kind: k}
}

// IsRune reports whether e is the printable character r.
func (e Event) IsRune(r rune) bool {
	return e.Kind == KindPrintable && e.Rune == r
}

// String renders the event the way the dashboard shows the last key.
func (e Event) String() string {
	switch e.Kind {
	case KindPrintable:
		return string(e.Rune)
	case KindUnrecognized:
		return "unrecognized " + e.Diagnostic
	default:
		return e.Kind.String()
	}
}
