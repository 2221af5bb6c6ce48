package env

import (
	"fmt"
	"io"

	"github.com/mpapenbr/docflow-session-go/pkg/guard"
)

// Printer is the CLI navigator. A terminal cannot navigate, so targets are
// printed for the user to follow.
type Printer struct {
	out      io.Writer
	location string
	targets  []string
}

var _ guard.Navigator = (*Printer)(nil)

func NewPrinter(out io.Writer, location string) *Printer {
	return &Printer{out: out, location: location}
}

func (p *Printer) Location() string {
	return p.location
}

func (p *Printer) Navigate(url string) {
	p.targets = append(p.targets, url)
	fmt.Fprintf(p.out, "navigate to %s\n", url)
}

// Targets returns the urls passed to Navigate
func (p *Printer) Targets() []string {
	return p.targets
}
