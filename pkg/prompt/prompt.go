// Package prompt reads a passphrase from the operator.
package prompt

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Text is written before every passphrase read.
const Text = "Please enter a password :"

var ErrNoInput = errors.New("no passphrase entered before end of input")

// Prompter asks for a passphrase on out and reads it from in.
type Prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

// New returns a Prompter. The reader is buffered once so successive prompts
// on a pipe see consecutive lines.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, reader: bufio.NewReader(in)}
}

// Passphrase prompts and returns one line of input without its line ending.
// Input from a terminal is not echoed.
func (p *Prompter) Passphrase() (string, error) {
	if _, err := io.WriteString(p.out, Text); err != nil {
		return "", errors.Wrap(err, "writing prompt")
	}

	if fd, ok := terminalFd(p.in); ok {
		secret, err := term.ReadPassword(fd)
		// The newline typed by the operator was not echoed.
		_, _ = io.WriteString(p.out, "\n")
		if err != nil {
			return "", errors.Wrap(err, "reading passphrase from terminal")
		}
		return string(secret), nil
	}

	line, err := p.reader.ReadString('\n')
	switch {
	case errors.Is(err, io.EOF) && line == "":
		return "", ErrNoInput
	case err != nil && !errors.Is(err, io.EOF):
		return "", errors.Wrap(err, "reading passphrase")
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	if !isatty.IsTerminal(f.Fd()) {
		return 0, false
	}
	return int(f.Fd()), true
}
