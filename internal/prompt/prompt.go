// Package prompt reads short operator answers from a terminal.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Boolean writes "question [y/N]: " and reads one answer. Only an answer
// whose first non-space character is y or Y counts as yes; anything else,
// including EOF or a read error, is no.
func Boolean(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	line, err := readLine(in)
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		return r == 'y' || r == 'Y'
	}
	return false
}

// Secret writes question and reads one line without echo when in is a
// terminal. Non-terminal input is read as a plain line.
func Secret(in io.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprintf(out, "%s: ", strings.TrimSpace(question))
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return string(data), nil
	}
	line, err := readLine(in)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" && errors.Is(err, io.EOF) {
		return "", io.ErrUnexpectedEOF
	}
	return line, nil
}

// Interactive reports whether in is attached to a terminal.
func Interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// readLine reads up to and including the next newline one byte at a time so
// later prompts on the same reader see the remaining input.
func readLine(in io.Reader) (string, error) {
	var b strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			b.WriteByte(buf[0])
			if buf[0] == '\n' {
				return b.String(), nil
			}
		}
		if err != nil {
			return b.String(), err
		}
	}
}
