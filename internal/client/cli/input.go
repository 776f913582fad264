package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// prompter reads answers from in and writes prompts to out. Secrets are
// read from the terminal behind fd without echo.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// line prints label and reads one trimmed line. A final line without a
// newline is still returned; io.EOF is reported only when nothing was read.
func (p *prompter) line(label string) (string, error) {
	if label != "" {
		if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
			return "", err
		}
	}
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// secret prints label and reads a password without echo. The caller owns
// the returned bytes and should wipe them.
func (p *prompter) secret(label string) ([]byte, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
		return nil, err
	}
	pw, err := readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}
