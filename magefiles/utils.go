//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/magefile/mage/mg"
)

type command struct {
	name   string
	args   []string
	stream bool
	// quiet suppresses the echo line; set while a progress bar owns the terminal.
	quiet bool
}

type commandOption func(*command)

func withArgs(args ...string) commandOption {
	return func(c *command) {
		c.args = args
	}
}

// withStream copies the output to the terminal as it is produced.
func withStream() commandOption {
	return func(c *command) {
		c.stream = true
	}
}

func withQuiet() commandOption {
	return func(c *command) {
		c.quiet = true
	}
}

func (c *command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// executeCmd runs name and returns its combined output. On failure the output
// is attached to the error so callers decide where it gets printed.
func executeCmd(name string, options ...commandOption) (string, error) {
	c := &command{name: name}
	for _, o := range options {
		o(c)
	}
	if !c.quiet {
		fmt.Printf("Executing: %s\n", c)
	}

	var out bytes.Buffer
	cmd := exec.Command(c.name, c.args...)
	if c.stream || mg.Verbose() {
		cmd.Stdout = io.MultiWriter(&out, os.Stdout)
		cmd.Stderr = io.MultiWriter(&out, os.Stderr)
	} else {
		cmd.Stdout = &out
		cmd.Stderr = &out
	}
	if err := cmd.Run(); err != nil {
		err = errors.Wrapf(err, "executing %s", c)
		if msg := strings.TrimSpace(out.String()); msg != "" {
			err = errors.WithDetail(err, msg)
		}
		return out.String(), err
	}
	return out.String(), nil
}
