package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/ppiankov/casecrawl/internal/auth"
	"github.com/ppiankov/casecrawl/internal/model"
)

// terminalSolver saves the captcha image and asks the operator to type it
type terminalSolver struct {
	dir string
	in  *bufio.Reader
	out io.Writer
}

func newTerminalSolver(dir string, in io.Reader, out io.Writer) *terminalSolver {
	return &terminalSolver{dir: dir, in: bufio.NewReader(in), out: out}
}

var _ auth.Solver = (*terminalSolver)(nil)

func (s *terminalSolver) Solve(ctx context.Context, ch *model.Challenge) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create captcha dir: %w", err)
	}
	path := filepath.Join(s.dir, "captcha"+ch.Extension())
	if err := os.WriteFile(path, ch.Image, 0644); err != nil {
		return "", fmt.Errorf("save captcha: %w", err)
	}

	fmt.Fprintf(s.out, "Captcha saved to %s\n", path)
	fmt.Fprintf(s.out, "Enter captcha: ")

	answer, err := readLine(ctx, s.in)
	if err != nil {
		return "", fmt.Errorf("read captcha: %w", err)
	}
	return answer, nil
}

// promptLine prints label and reads one line from in
func promptLine(ctx context.Context, in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	return readLine(ctx, in)
}

// readPassword reads a password without echo when fd is a terminal.
// Piped input is read as a plain line from in.
func readPassword(ctx context.Context, fd int, in *bufio.Reader, out io.Writer) (string, error) {
	if !term.IsTerminal(fd) {
		return promptLine(ctx, in, out, "Password")
	}

	fmt.Fprint(out, "Password: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

// readLine reads one trimmed line, giving up when ctx is done
func readLine(ctx context.Context, in *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{strings.TrimSpace(line), err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}
