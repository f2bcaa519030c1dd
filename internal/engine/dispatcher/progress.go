package dispatcher

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// progress is the single goroutine that prints "[k/n] name" lines. k is
// assigned in the order announcements arrive.
type progress struct {
	out    io.Writer
	total  int
	prefix *color.Color
	lines  chan string
	done   chan struct{}
}

func newProgress(out io.Writer, total int, colored bool) *progress {
	prefix := color.New(color.FgGreen, color.Bold)
	if colored {
		prefix.EnableColor()
	} else {
		prefix.DisableColor()
	}

	p := &progress{
		out:    out,
		total:  total,
		prefix: prefix,
		lines:  make(chan string, 64),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *progress) loop() {
	defer close(p.done)
	k := 0
	for name := range p.lines {
		k++
		_, _ = fmt.Fprintf(p.out, "%s %s\n", p.prefix.Sprintf("[%d/%d]", k, p.total), name)
	}
}

// Announce queues a progress line for name.
func (p *progress) Announce(name string) {
	p.lines <- name
}

// close drains the queued lines and stops the goroutine.
func (p *progress) close() {
	close(p.lines)
	<-p.done
}
