// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package region owns a read-write memory mapping of an entire file.
//
// A *Region is the only owner of its file handle and mapping.  Construction
// either returns a fully mapped region or releases everything it acquired
// before returning the error; Close unmaps and then closes exactly once.
package region

import (
	"errors"
	"fmt"
	"math"
	"os"
	"syscall"
)

// ErrEmptyFile is returned by Open for a zero-length file, which cannot be
// usefully mapped.
var ErrEmptyFile = errors.New("region: file is empty")

// ErrShrink is returned by Resize when asked to make a file smaller.
var ErrShrink = errors.New("region: refusing to shrink file")

// OSError records a failed open, stat, map, unmap, or resize call.
type OSError struct {
	Op   string
	Path string
	Err  error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *OSError) Unwrap() error {
	return e.Err
}

// Code returns the platform error number behind the failure, or -1 if the
// underlying error carries none.
func (e *OSError) Code() int {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return int(errno)
	}
	return -1
}

// Option configures Open.
type Option func(*options)

type options struct {
	mapper Mapper
}

// WithMapper selects the mapping implementation.  The default is
// DefaultMapper().
func WithMapper(m Mapper) Option {
	return func(opts *options) {
		if m != nil {
			opts.mapper = m
		}
	}
}

// Region is a mapped view of a whole file.
type Region struct {
	path   string
	f      *os.File
	data   []byte
	mapper Mapper
}

// Open opens the existing file at path read-write and maps its full length.
func Open(path string, opts ...Option) (*Region, error) {
	o := options{mapper: DefaultMapper()}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &OSError{Op: "open", Path: path, Err: err}
	}
	mapped := false
	defer func() {
		if !mapped {
			_ = f.Close()
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, &OSError{Op: "stat", Path: path, Err: err}
	}
	size := fi.Size()
	if size == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	if size > math.MaxInt {
		return nil, &OSError{Op: "mmap", Path: path, Err: fmt.Errorf("file size %d exceeds the address space", size)}
	}

	data, err := o.mapper.Map(f, int(size))
	if err != nil {
		return nil, &OSError{Op: "mmap", Path: path, Err: err}
	}
	mapped = true

	return &Region{
		path:   path,
		f:      f,
		data:   data,
		mapper: o.mapper,
	}, nil
}

// Path returns the path the region was opened from.
func (r *Region) Path() string {
	return r.path
}

// Bytes returns the mapping.  The slice is only valid until Close.
func (r *Region) Bytes() []byte {
	return r.data
}

// Size returns the mapped length in bytes.
func (r *Region) Size() int {
	return len(r.data)
}

// Mapper returns the implementation the region was mapped with.
func (r *Region) Mapper() Mapper {
	return r.mapper
}

// Close unmaps the region and closes the file.  It is safe to call more than
// once; only the first call does anything.
func (r *Region) Close() error {
	if r == nil || r.f == nil {
		return nil
	}

	var errs []error
	if r.data != nil {
		if err := r.mapper.Unmap(r.data); err != nil {
			errs = append(errs, &OSError{Op: "munmap", Path: r.path, Err: err})
		}
		r.data = nil
	}
	if err := r.f.Close(); err != nil {
		errs = append(errs, &OSError{Op: "close", Path: r.path, Err: err})
	}
	r.f = nil

	return errors.Join(errs...)
}

// Resize grows the file at path to size bytes.  New bytes read as zero.
// The file must not be mapped by a live Region while this runs.
func Resize(path string, size int64) error {
	fi, err := os.Stat(path)
	if err != nil {
		return &OSError{Op: "stat", Path: path, Err: err}
	}
	if fi.Size() > size {
		return fmt.Errorf("%s: %d -> %d bytes: %w", path, fi.Size(), size, ErrShrink)
	}
	if fi.Size() == size {
		return nil
	}
	if err := os.Truncate(path, size); err != nil {
		return &OSError{Op: "truncate", Path: path, Err: err}
	}
	return nil
}
