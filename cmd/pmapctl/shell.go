// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// shell reads commands interactively until quit or EOF.
func (s *session) shell(historyPath string, errOut io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(complete)

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			_, _ = line.ReadHistory(f)
			_ = f.Close()
		}
		defer saveHistory(line, historyPath)
	}

	st := s.m.Stat()
	fmt.Fprintf(s.out, "pmapctl - %s (%s, %d/%d slots used)\n", st.Path, st.Layout, st.Occupied, st.Capacity)
	fmt.Fprintln(s.out, "Type 'help' for available commands.")

	for {
		input, err := line.Prompt("pmap> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		err = s.exec(strings.Fields(input))
		if errors.Is(err, errQuit) {
			return nil
		} else if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}
}

func saveHistory(line *liner.State, path string) {
	f, err := os.Create(path)
	if err != nil {
		return
	}
	_, _ = line.WriteHistory(f)
	_ = f.Close()
}
