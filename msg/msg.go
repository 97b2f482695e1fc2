// Package msg gives low-ceremony, channel-based trace output for the
// per-trial chatter of the accessed-address probe: every trial and every
// retry. It sits alongside the structured logrus
// logging used for warnings/errors (see datasets/parent.go, driver.go);
// this package is for the "+all" fire-hose a developer turns on when a
// convergence loop isn't converging and they want to see every trial.
// A "channel" here isn't a Go channel, just a named, independently
// toggled conduit. Toggling happens via the DEBUG environment variable.
package msg

import "fmt"
import "os"

type Channel interface {
	Error(format string, a ...interface{})
	Warning(format string, a ...interface{})
	Trace(format string, a ...interface{})
}

type stdoutchn struct {
	on uint
}

const (
	bitError = 1 << iota
	bitWarning
	bitTrace
)

const (
	cnorm   = "\033[00m"
	cred    = "\033[01;31m"
	cyellow = "\033[01;33m"
)

func (c stdoutchn) Error(format string, a ...interface{}) {
	if (c.on & bitError) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "%s[probe] ", cred)
	fmt.Fprintf(os.Stderr, format, a...)
	if len(format) == 0 || format[len(format)-1] != '\n' {
		fmt.Fprintf(os.Stderr, "\n")
	}
	fmt.Fprintf(os.Stderr, "%s", cnorm)
}

func (c stdoutchn) Warning(format string, a ...interface{}) {
	if (c.on & bitWarning) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "%s[probe] ", cyellow)
	fmt.Fprintf(os.Stderr, format, a...)
	if len(format) == 0 || format[len(format)-1] != '\n' {
		fmt.Fprintf(os.Stderr, "\n")
	}
	fmt.Fprintf(os.Stderr, "%s", cnorm)
}

func (c stdoutchn) Trace(format string, a ...interface{}) {
	if (c.on & bitTrace) == 0 {
		return
	}
	fmt.Printf("[probe] ")
	fmt.Printf(format, a...)
	if len(format) == 0 || format[len(format)-1] != '\n' {
		fmt.Printf("\n")
	}
}

func (c *stdoutchn) enable() {
	c.on = bitError | bitWarning
	dbg := os.Getenv("DEBUG")
	if dbg == "+all" {
		c.on = bitError | bitWarning | bitTrace
	}
}

// StdChan returns a Channel writing to stdout/stderr, with tracing gated by
// DEBUG=+all in the environment.
func StdChan() Channel {
	var rv stdoutchn
	rv.enable()
	return rv
}
