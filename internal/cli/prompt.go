package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a prompt is abandoned because its
// context ended.
var ErrInputCancelled = errors.New("input canceled")

// Prompter asks the user questions on a terminal. Reads honor context
// cancellation so an interrupt never leaves the process stuck on stdin.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	mu  sync.Mutex
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// readLine returns the next trimmed line. A final line without a newline is
// returned as is; io.EOF is returned only when nothing was read.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	type result struct {
		err  error
		line string
	}
	ch := make(chan result, 1)

	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		line, err := p.in.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-ch:
		return res.line, res.err
	}
}

// Ask prints question and returns the answer, or def when the answer is
// blank.
func (p *Prompter) Ask(ctx context.Context, question, def string) (string, error) {
	label := question
	if def != "" {
		label += " [" + def + "]"
	}
	fmt.Fprint(p.out, FormatPrompt(label+": "))

	answer, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Confirm asks a yes/no question. Anything but y or yes is no, including
// end of input.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprint(p.out, FormatPrompt(question+" [y/N]: "))

	answer, err := p.readLine(ctx)
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
