package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/logger"
)

// stdioInteraction implements host.Interaction against a terminal: it
// prints choices/prompts to out and reads selections from in. A
// non-interactive process (piped stdin, no TTY) should supply a
// scripted host.Interaction instead — this one is for `grimoire run`
// invoked directly at a terminal.
type stdioInteraction struct {
	in  *bufio.Reader
	out io.Writer
}

func newStdioInteraction(in io.Reader, out io.Writer) *stdioInteraction {
	return &stdioInteraction{in: bufio.NewReader(in), out: out}
}

var _ host.Interaction = (*stdioInteraction)(nil)

func (s *stdioInteraction) PresentChoice(ctx context.Context, prompt string, choices []host.Choice, selectionCount int) ([]string, error) {
	fmt.Fprintln(s.out, prompt)
	for i, c := range choices {
		fmt.Fprintf(s.out, "  %d) %s\n", i+1, c.Label)
	}
	selected := make(map[int]bool)
	var result []string
	for len(result) < selectionCount {
		fmt.Fprintf(s.out, "select %d of %d> ", selectionCount-len(result), selectionCount)
		line, err := s.readLine(ctx)
		if err != nil {
			return nil, err
		}
		idx, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || idx < 1 || idx > len(choices) || selected[idx] {
			fmt.Fprintln(s.out, "invalid selection, try again")
			continue
		}
		selected[idx] = true
		result = append(result, choices[idx-1].ID)
	}
	return result, nil
}

func (s *stdioInteraction) PromptText(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(s.out, prompt+" ")
	return s.readLine(ctx)
}

func (s *stdioInteraction) Display(ctx context.Context, value any) error {
	switch v := value.(type) {
	case string:
		fmt.Fprintln(s.out, v)
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			logger.Warn("failed to marshal display value: %v", err)
			fmt.Fprintf(s.out, "%v\n", v)
			return nil
		}
		fmt.Fprintln(s.out, string(b))
	}
	return nil
}

func (s *stdioInteraction) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := s.in.ReadString('\n')
		ch <- result{strings.TrimRight(line, "\r\n"), err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}
