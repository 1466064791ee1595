// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build linux || darwin || freebsd

package region

import (
	"os"

	"golang.org/x/sys/unix"
)

// UnixMapper maps files with mmap(2) directly.
type UnixMapper struct{}

func (UnixMapper) Map(f *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// lookups land on arbitrary slots, so readahead is wasted work
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}
	return data, nil
}

func (UnixMapper) Unmap(b []byte) error {
	return unix.Munmap(b)
}

func (UnixMapper) String() string {
	return "unix"
}

// DefaultMapper returns the mapper used when none is configured.
func DefaultMapper() Mapper {
	return UnixMapper{}
}

func platformMapper(name string) (Mapper, bool) {
	if name == "unix" {
		return UnixMapper{}, true
	}
	return nil, false
}
