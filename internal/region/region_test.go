// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package region

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allMappers returns every mapper available on this platform.
func allMappers() map[string]Mapper {
	mappers := map[string]Mapper{"portable": PortableMapper{}}
	if m, ok := platformMapper("unix"); ok {
		mappers["unix"] = m
	}
	return mappers
}

func writeFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "region.test")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return path
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")
	r, err := Open(path)
	require.Error(t, err)
	require.Nil(t, r)

	var osErr *OSError
	require.True(t, errors.As(err, &osErr))
	assert.Equal(t, "open", osErr.Op)
	assert.Equal(t, path, osErr.Path)
	assert.Equal(t, int(syscall.ENOENT), osErr.Code())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOpenEmptyFile(t *testing.T) {
	path := writeFile(t, 0)
	r, err := Open(path)
	require.ErrorIs(t, err, ErrEmptyFile)
	require.Nil(t, r)

	var osErr *OSError
	require.False(t, errors.As(err, &osErr))
}

type failingMapper struct{ err error }

func (m failingMapper) Map(*os.File, int) ([]byte, error) { return nil, m.err }
func (m failingMapper) Unmap([]byte) error                { return nil }

func TestOpenMapFailure(t *testing.T) {
	path := writeFile(t, 64)
	r, err := Open(path, WithMapper(failingMapper{err: syscall.ENOMEM}))
	require.Nil(t, r)

	var osErr *OSError
	require.True(t, errors.As(err, &osErr))
	assert.Equal(t, "mmap", osErr.Op)
	assert.Equal(t, int(syscall.ENOMEM), osErr.Code())
}

func TestRegionWritesReachFile(t *testing.T) {
	for name, mapper := range allMappers() {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, 4096)

			r, err := Open(path, WithMapper(mapper))
			require.NoError(t, err)
			require.Equal(t, 4096, r.Size())
			require.Equal(t, path, r.Path())
			require.Equal(t, mapper, r.Mapper())

			binary.LittleEndian.PutUint64(r.Bytes()[8:], 0xC0FFEE)
			copy(r.Bytes()[100:], "hello")
			require.NoError(t, r.Close())

			contents, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, []byte("hello"), contents[100:105])

			r, err = Open(path, WithMapper(mapper))
			require.NoError(t, err)
			require.Equal(t, uint64(0xC0FFEE), binary.LittleEndian.Uint64(r.Bytes()[8:]))
			require.NoError(t, r.Close())
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	path := writeFile(t, 128)
	r, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.Nil(t, r.Bytes())
	require.Equal(t, 0, r.Size())
	require.NoError(t, r.Close())

	var nilRegion *Region
	require.NoError(t, nilRegion.Close())
}

func TestResize(t *testing.T) {
	path := writeFile(t, 32)

	require.NoError(t, Resize(path, 32))
	require.NoError(t, Resize(path, 96))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(96), fi.Size())

	require.ErrorIs(t, Resize(path, 16), ErrShrink)

	var osErr *OSError
	err = Resize(filepath.Join(t.TempDir(), "missing"), 16)
	require.True(t, errors.As(err, &osErr))
	require.Equal(t, "stat", osErr.Op)
}

func TestParseMapper(t *testing.T) {
	m, err := ParseMapper("")
	require.NoError(t, err)
	require.Equal(t, DefaultMapper(), m)

	m, err = ParseMapper("portable")
	require.NoError(t, err)
	require.Equal(t, PortableMapper{}, m)

	_, err = ParseMapper("carrier-pigeon")
	require.Error(t, err)
}
