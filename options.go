// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pmap

import (
	"io"
	"log/slog"

	"github.com/bpowers/pmap/internal/format"
	"github.com/bpowers/pmap/internal/region"
)

// Layout selects the slot bookkeeping stored in a file.  A file must always
// be opened with the layout it was created with.
type Layout = format.Layout

const (
	// Tagged keeps a state word in every record and the free list in
	// memory.  Opening scans every record.
	Tagged = format.Tagged
	// Linked keeps free and occupied rings in the file.  Opening walks only
	// the occupied slots, and iteration is most recently inserted first.
	Linked = format.Linked
)

// ParseLayout parses "tagged" or "linked".
func ParseLayout(s string) (Layout, error) {
	return format.ParseLayout(s)
}

// Mapper maps files into memory.
type Mapper = region.Mapper

// ParseMapper returns the mapper named "unix" or "portable"; "" and
// "default" select the platform default.
func ParseMapper(name string) (Mapper, error) {
	return region.ParseMapper(name)
}

// Option configures Create, Open and Attach.
type Option func(*options)

type options struct {
	layout Layout
	logger *slog.Logger
	mapper Mapper
}

func newOptions(opts []Option) options {
	o := options{
		layout: Tagged,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		mapper: region.DefaultMapper(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLayout sets the file layout.  The default is Tagged.
func WithLayout(l Layout) Option {
	return func(opts *options) {
		opts.layout = l
	}
}

// WithLogger sets an optional logger for lifecycle events (open, create,
// expand, close).  If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithMapper overrides the platform's default mapper.
func WithMapper(m Mapper) Option {
	return func(opts *options) {
		if m != nil {
			opts.mapper = m
		}
	}
}
