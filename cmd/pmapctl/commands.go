// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bpowers/pmap"
)

var (
	errQuit     = errors.New("quit")
	errNotFound = errors.New("not found")
	errUsage    = errors.New("usage")
)

type store = pmap.Map[uint64, record]

// session runs commands against one open store.
type session struct {
	m   *store
	out io.Writer
	gen *generator
	now func() time.Time
}

type command struct {
	name  string
	args  string
	help  string
	nargs int // -1 for "any"
	run   func(s *session, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"put", "<name> <value>", "Insert or overwrite a record", 2, (*session).cmdPut},
		{"add", "<name> <value>", "Insert a record; fails if the name exists", 2, (*session).cmdAdd},
		{"get", "<name>", "Print a record", 1, (*session).cmdGet},
		{"del", "<name>", "Delete a record", 1, (*session).cmdDel},
		{"ls", "[limit]", "List records in slot order", -1, (*session).cmdLs},
		{"len", "", "Count records", 0, (*session).cmdLen},
		{"sum", "", "Sum all values", 0, (*session).cmdSum},
		{"info", "", "Show file info", 0, (*session).cmdInfo},
		{"clear", "", "Delete every record", 0, (*session).cmdClear},
		{"bulk", "<count>", "Insert count random records", 1, (*session).cmdBulk},
		{"expand", "<capacity>", "Grow the file to capacity slots", 1, (*session).cmdExpand},
		{"help", "", "Show this help", 0, (*session).cmdHelp},
		{"quit", "", "Exit", 0, func(*session, []string) error { return errQuit }},
	}
}

func lookupCommand(name string) (command, bool) {
	switch name {
	case "exit", "q":
		name = "quit"
	case "?":
		name = "help"
	case "delete", "rm":
		name = "del"
	}
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// exec runs a single command line split into fields.
func (s *session) exec(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	c, ok := lookupCommand(strings.ToLower(fields[0]))
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help' for commands)", fields[0])
	}
	args := fields[1:]
	if c.nargs >= 0 && len(args) != c.nargs {
		return fmt.Errorf("%w: %s %s", errUsage, c.name, c.args)
	}
	return c.run(s, args)
}

func parseValue(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad value %q: %w", s, err)
	}
	return v, nil
}

func (s *session) cmdPut(args []string) error {
	v, err := parseValue(args[1])
	if err != nil {
		return err
	}
	r, err := newRecord(args[0], v, s.now())
	if err != nil {
		return err
	}
	return s.m.InsertOrAssign(r)
}

func (s *session) cmdAdd(args []string) error {
	v, err := parseValue(args[1])
	if err != nil {
		return err
	}
	r, err := newRecord(args[0], v, s.now())
	if err != nil {
		return err
	}
	return s.m.Insert(r)
}

func (s *session) cmdGet(args []string) error {
	r, ok := s.m.Find(nameID(args[0]))
	if !ok {
		return fmt.Errorf("%s: %w", args[0], errNotFound)
	}
	fmt.Fprintln(s.out, r)
	return nil
}

func (s *session) cmdDel(args []string) error {
	if !s.m.Erase(nameID(args[0])) {
		return fmt.Errorf("%s: %w", args[0], errNotFound)
	}
	return nil
}

func (s *session) cmdLs(args []string) error {
	limit := -1
	switch len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("bad limit %q", args[0])
		}
		limit = n
	default:
		return fmt.Errorf("%w: ls [limit]", errUsage)
	}

	var n int
	for r := range s.m.Ordered() {
		if n == limit {
			break
		}
		fmt.Fprintln(s.out, r)
		n++
	}
	return nil
}

func (s *session) cmdLen([]string) error {
	fmt.Fprintln(s.out, s.m.Len())
	return nil
}

func (s *session) cmdSum([]string) error {
	var sum int64
	for _, r := range s.m.All() {
		sum += r.Value
	}
	fmt.Fprintln(s.out, sum)
	return nil
}

func (s *session) cmdInfo([]string) error {
	st := s.m.Stat()
	fmt.Fprintf(s.out, "path:        %s\n", st.Path)
	fmt.Fprintf(s.out, "layout:      %s\n", st.Layout)
	fmt.Fprintf(s.out, "mapper:      %s\n", st.Mapper)
	fmt.Fprintf(s.out, "item size:   %d\n", st.ItemSize)
	fmt.Fprintf(s.out, "record size: %d\n", st.RecordSize)
	fmt.Fprintf(s.out, "file size:   %d\n", st.FileSize)
	fmt.Fprintf(s.out, "capacity:    %d\n", st.Capacity)
	fmt.Fprintf(s.out, "occupied:    %d\n", st.Occupied)
	fmt.Fprintf(s.out, "free:        %d\n", st.Free)
	return nil
}

func (s *session) cmdClear([]string) error {
	s.m.Clear()
	return nil
}

func (s *session) cmdBulk(args []string) error {
	count, err := strconv.Atoi(args[0])
	if err != nil || count < 0 {
		return fmt.Errorf("bad count %q", args[0])
	}

	now := s.now()
	var inserted, dups int
	for inserted < count {
		name, value := s.gen.next()
		r, err := newRecord(name, value, now)
		if err != nil {
			return err
		}
		err = s.m.Insert(r)
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, pmap.ErrDuplicateKey):
			dups++
		case errors.Is(err, pmap.ErrStorageFull):
			fmt.Fprintf(s.out, "inserted %d of %d (%d duplicate names): store full\n", inserted, count, dups)
			return nil
		default:
			return err
		}
	}
	fmt.Fprintf(s.out, "inserted %d (%d duplicate names)\n", inserted, dups)
	return nil
}

func (s *session) cmdExpand(args []string) error {
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bad capacity %q", args[0])
	}
	return s.m.Expand(uint32(n))
}

func (s *session) cmdHelp([]string) error {
	fmt.Fprintln(s.out, "Commands:")
	for _, c := range commands {
		usage := c.name
		if c.args != "" {
			usage += " " + c.args
		}
		fmt.Fprintf(s.out, "  %-24s %s\n", usage, c.help)
	}
	return nil
}

// complete returns the command names starting with line.
func complete(line string) []string {
	var completions []string
	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c.name, lower) {
			completions = append(completions, c.name)
		}
	}
	return completions
}
