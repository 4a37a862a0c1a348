// internal/light/console.go
package light

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Console prints every state change with the time since the first one.
// Repeated states are not printed.
type Console struct {
	w     io.Writer
	now   func() time.Time
	start time.Time
	state bool
	set   bool
}

// NewConsole writes to w, or stdout when w is nil.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w, now: time.Now}
}

// Set prints the new state.
func (c *Console) Set(on bool) error {
	if c.set && c.state == on {
		return nil
	}
	now := c.now()
	if !c.set {
		c.start = now
	}
	c.set = true
	c.state = on

	mark := "□ off"
	if on {
		mark = "■ ON"
	}
	_, err := fmt.Fprintf(c.w, "%8.3fs %s\n", now.Sub(c.start).Seconds(), mark)
	return err
}

// Close is a no-op.
func (c *Console) Close() error {
	return nil
}
