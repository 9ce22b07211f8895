package permissions

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter decides whether to grant a permission that no configured rule
// covers. The bridge calls it synchronously, before any driver I/O.
type Prompter interface {
	Prompt(class Class, descriptor, apiName string) bool
}

// DenyPrompter refuses every request. It is the default for non-interactive
// runs so that missing grants fail loudly instead of hanging on stdin.
type DenyPrompter struct{}

// Prompt implements Prompter.
func (DenyPrompter) Prompt(Class, string, string) bool { return false }

// TerminalPrompter asks the operator on stderr and reads a y/n answer from
// stdin. Anything other than an explicit yes counts as no.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminalPrompter returns a prompter wired to the process terminal.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// Interactive reports whether stdin is a terminal, which is the condition
// for installing a TerminalPrompter at all.
func Interactive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Prompt implements Prompter.
func (p *TerminalPrompter) Prompt(class Class, descriptor, apiName string) bool {
	fmt.Fprintf(p.Out, "\nGuest requires permission:\n")
	if apiName != "" {
		fmt.Fprintf(p.Out, "  %s access to %q (requested by %s)\n", class, descriptor, apiName)
	} else {
		fmt.Fprintf(p.Out, "  %s access to %q\n", class, descriptor)
	}
	fmt.Fprintf(p.Out, "Allow? [y/N]: ")

	reader := bufio.NewReader(p.In)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
