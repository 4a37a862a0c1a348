// internal/cw/event.go
package cw

// Event is what the light-pulse decoder concludes from one interval.
type Event uint8

const (
	// EventNone means the interval matched no window
	EventNone Event = iota
	// EventDit is a short mark
	EventDit
	// EventDah is a long mark
	EventDah
	// EventSpace is the gap between marks of one letter
	EventSpace
	// EventLetterSpace closes a letter
	EventLetterSpace
	// EventWordSpace closes a word
	EventWordSpace
	// EventEndMessage closes the message
	EventEndMessage
)

var eventNames = [...]string{
	EventNone:        "NONE",
	EventDit:         "DIT",
	EventDah:         "DAH",
	EventSpace:       "SPACE",
	EventLetterSpace: "LETTER_SPACE",
	EventWordSpace:   "WORD_SPACE",
	EventEndMessage:  "END_MESSAGE",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "UNKNOWN"
}

// IsBoundary reports whether e ends a letter, word or message.
func (e Event) IsBoundary() bool {
	return e == EventLetterSpace || e == EventWordSpace || e == EventEndMessage
}
