// Package repl is a line-editing read-eval-print loop.  A Consumer does
// the evaluation.
package repl

import (
	"errors"
	"io"
	"os"

	"github.com/peterh/liner"
)

type Consumer interface {
	// Consume evaluates line and returns true when the loop should end.
	Consume(line string) bool
	Prompt() string
}

// Run reads lines for c until c or the user ends the loop.  When history
// names a file, earlier lines are loaded from it and the session's lines
// are saved back on exit.
func Run(c Consumer, history string) error {
	l := liner.NewLiner()
	defer l.Close()
	l.SetCtrlCAborts(true)
	l.SetMultiLineMode(true)
	if history != "" {
		if f, err := os.Open(history); err == nil {
			l.ReadHistory(f)
			f.Close()
		}
	}
	err := loop(l, c)
	if history != "" {
		if saveErr := save(l, history); err == nil {
			err = saveErr
		}
	}
	return err
}

func loop(l *liner.State, c Consumer) error {
	for {
		line, err := l.Prompt(c.Prompt())
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		if c.Consume(line) {
			return nil
		}
		if line != "" {
			l.AppendHistory(line)
		}
	}
}

func save(l *liner.State, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := l.WriteHistory(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
