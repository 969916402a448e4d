// Package prompt reads interactive input for the command-line client.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/observer/internal/client/identity"
)

// Prompter asks questions on out and reads answers line by line from in.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// New returns a Prompter over in and out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Line prints label and returns the trimmed answer. ok is false once
// input is exhausted.
func (p *Prompter) Line(label string) (answer string, ok bool) {
	if label != "" {
		fmt.Fprint(p.out, label)
	}
	if !p.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

// Credentials asks for a username and a password.
func (p *Prompter) Credentials() (username, password string, ok bool) {
	username, ok = p.Line("Username: ")
	if !ok {
		return "", "", false
	}
	password, ok = p.Line("Password: ")
	return username, password, ok
}

// IdentityToken asks where the identity token comes from. An empty path
// falls back to pasting the token itself.
func (p *Prompter) IdentityToken() (identity.Provider, bool) {
	path, ok := p.Line("Enter token file path (leave empty for manual input): ")
	if !ok {
		return nil, false
	}
	if path != "" {
		return identity.File(path), true
	}
	token, ok := p.Line("Enter identity token: ")
	if !ok {
		return nil, false
	}
	return identity.Static(token), true
}

// Confirm asks a yes/no question. Only "y" and "yes" count as yes.
func (p *Prompter) Confirm(question string) bool {
	answer, ok := p.Line(question + " [y/N]: ")
	if !ok {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
