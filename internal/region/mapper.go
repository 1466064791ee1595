// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package region

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Mapper is the platform capability to map and unmap a file.  Map must
// return a shared, writable mapping of the first size bytes of f so that
// stores through the slice reach the file.
type Mapper interface {
	Map(f *os.File, size int) ([]byte, error)
	Unmap(b []byte) error
}

// PortableMapper maps files through mmap-go, which covers Windows as well as
// the Unix family.
type PortableMapper struct{}

func (PortableMapper) Map(f *os.File, size int) ([]byte, error) {
	m, err := mmap.MapRegion(f, size, mmap.RDWR, 0, 0)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (PortableMapper) Unmap(b []byte) error {
	m := mmap.MMap(b)
	return m.Unmap()
}

func (PortableMapper) String() string {
	return "portable"
}

// ParseMapper resolves a mapper name as accepted on the command line:
// "default" (or ""), "portable", and on Unix builds "unix".
func ParseMapper(name string) (Mapper, error) {
	switch name {
	case "", "default":
		return DefaultMapper(), nil
	case "portable":
		return PortableMapper{}, nil
	}
	if m, ok := platformMapper(name); ok {
		return m, nil
	}
	return nil, fmt.Errorf("unknown mapper %q", name)
}
