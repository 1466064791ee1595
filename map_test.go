// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Key   int32
	Value int32
}

func itemKey(it *item) int32 { return it.Key }

var layouts = []Layout{Tagged, Linked}

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.pmap")
}

func mustCreate(t *testing.T, path string, capacity uint32, opts ...Option) *Map[int32, item] {
	t.Helper()
	m, err := Create(path, capacity, itemKey, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func mustOpen(t *testing.T, path string, minCapacity uint32, opts ...Option) *Map[int32, item] {
	t.Helper()
	m, err := Open(path, minCapacity, itemKey, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func forEachLayout(t *testing.T, fn func(t *testing.T, l Layout)) {
	for _, l := range layouts {
		t.Run(l.String(), func(t *testing.T) {
			fn(t, l)
		})
	}
}

func values(m *Map[int32, item]) []int32 {
	var vs []int32
	for v := range m.Ordered() {
		vs = append(vs, v.Value)
	}
	return vs
}

// patchFile applies fn to the raw bytes of the file at path.
func patchFile(t *testing.T, path string, fn func(b []byte)) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	fn(b)
	require.NoError(t, os.WriteFile(path, b, 0o600))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(testPath(t), 1, itemKey)
	require.Error(t, err)
	var osErr *OSError
	require.True(t, errors.As(err, &osErr))
	assert.Equal(t, int(syscall.ENOENT), osErr.Code())
}

func TestOpenEmptyFile(t *testing.T) {
	path := testPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	_, err := Open(path, 1, itemKey)
	require.ErrorIs(t, err, ErrTooSmall)
	require.ErrorIs(t, err, ErrFormat)
}

func TestCreateZeroCapacity(t *testing.T) {
	_, err := Create(testPath(t), 0, itemKey)
	require.ErrorIs(t, err, ErrTooSmall)
}

func TestCreateThenOpen(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		require.NoError(t, mustCreate(t, path, 1, WithLayout(l)).Close())

		m := mustOpen(t, path, 1, WithLayout(l))
		assert.Equal(t, uint32(1), m.Capacity())
		assert.Equal(t, 0, m.Len())
		assert.True(t, m.Empty())
		assert.False(t, m.FullyOccupied())
	})
}

func TestInsertFind(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		m := mustCreate(t, testPath(t), 1, WithLayout(l))

		require.NoError(t, m.Insert(item{Key: 1, Value: 1}))
		v, ok := m.Find(1)
		require.True(t, ok)
		assert.Equal(t, item{Key: 1, Value: 1}, *v)
		assert.Equal(t, 1, m.Len())
		assert.False(t, m.Empty())
		assert.True(t, m.FullyOccupied())

		err := m.Insert(item{Key: 2, Value: 2})
		require.ErrorIs(t, err, ErrStorageFull)
		require.ErrorIs(t, err, ErrLogic)
		assert.Equal(t, 1, m.Len())

		_, ok = m.Find(2)
		assert.False(t, ok)
		assert.False(t, m.Contains(2))
		assert.True(t, m.Contains(1))
	})
}

func TestInsertDuplicate(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		m := mustCreate(t, testPath(t), 4, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 1, Value: 1}))

		err := m.Insert(item{Key: 1, Value: 2})
		require.ErrorIs(t, err, ErrDuplicateKey)
		assert.Equal(t, 1, m.Len())
		// the failed insert must not consume a slot
		assert.Equal(t, uint32(3), m.Stat().Free)

		got, ok := m.Get(1)
		require.True(t, ok)
		assert.Equal(t, int32(1), got.Value)
	})
}

func TestExpandOnOpen(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		m := mustCreate(t, path, 1, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 1, Value: 1}))
		require.NoError(t, m.Close())

		m = mustOpen(t, path, 2, WithLayout(l))
		assert.Equal(t, uint32(2), m.Capacity())
		assert.Equal(t, 1, m.Len())
		v, ok := m.Find(1)
		require.True(t, ok)
		assert.Equal(t, int32(1), v.Value)
		assert.False(t, m.FullyOccupied())

		require.NoError(t, m.Insert(item{Key: 2, Value: 2}))
		require.NoError(t, m.Close())

		// a smaller minimum never shrinks the file
		m = mustOpen(t, path, 1, WithLayout(l))
		assert.Equal(t, uint32(2), m.Capacity())
		assert.Equal(t, 2, m.Len())
	})
}

func TestExpand(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		m := mustCreate(t, path, 2, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 1, Value: 10}))
		require.NoError(t, m.Insert(item{Key: 2, Value: 20}))
		before := values(m)

		require.NoError(t, m.Expand(10))
		assert.Equal(t, uint32(10), m.Capacity())
		assert.Equal(t, before, values(m))
		assert.NoError(t, m.Expand(3))
		assert.Equal(t, uint32(10), m.Capacity())

		for i := int32(3); i <= 10; i++ {
			require.NoError(t, m.Insert(item{Key: i, Value: i * 10}))
		}
		require.ErrorIs(t, m.Insert(item{Key: 11}), ErrStorageFull)
		require.NoError(t, m.Close())

		st, err := os.Stat(path)
		require.NoError(t, err)
		m = mustOpen(t, path, 0, WithLayout(l))
		assert.Equal(t, uint64(st.Size()), m.Stat().FileSize)
		assert.Equal(t, 10, m.Len())
	})
}

func TestInsertOrAssign(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		m := mustCreate(t, testPath(t), 2, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 1, Value: 1}))

		require.NoError(t, m.InsertOrAssign(item{Key: 1, Value: 100}))
		assert.Equal(t, 1, m.Len())
		v, _ := m.Find(1)
		assert.Equal(t, int32(100), v.Value)

		require.NoError(t, m.InsertOrAssign(item{Key: 2, Value: 2}))
		assert.Equal(t, 2, m.Len())

		// full, but assigning to a present key still works
		require.NoError(t, m.InsertOrAssign(item{Key: 2, Value: 3}))
		require.ErrorIs(t, m.InsertOrAssign(item{Key: 3, Value: 3}), ErrStorageFull)
	})
}

func TestErase(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		m := mustCreate(t, testPath(t), 2, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 1, Value: 1}))
		require.NoError(t, m.Insert(item{Key: 2, Value: 2}))

		assert.True(t, m.Erase(1))
		assert.Equal(t, 1, m.Len())
		assert.False(t, m.Erase(1))
		assert.False(t, m.Erase(42))
		assert.Equal(t, 1, m.Len())
		_, ok := m.Find(1)
		assert.False(t, ok)
		assert.False(t, m.FullyOccupied())
	})
}

func TestClear(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		m := mustCreate(t, path, 3, WithLayout(l))
		for i := int32(1); i <= 3; i++ {
			require.NoError(t, m.Insert(item{Key: i, Value: i}))
		}
		m.Clear()
		assert.True(t, m.Empty())
		assert.False(t, m.FullyOccupied())

		for i := int32(4); i <= 6; i++ {
			require.NoError(t, m.Insert(item{Key: i, Value: i}))
		}
		assert.True(t, m.FullyOccupied())
		require.NoError(t, m.Close())

		m = mustOpen(t, path, 0, WithLayout(l))
		assert.Equal(t, 3, m.Len())
		_, ok := m.Find(1)
		assert.False(t, ok)
	})
}

func TestSum(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		m := mustCreate(t, testPath(t), 2, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 1, Value: 1}))
		require.NoError(t, m.Insert(item{Key: 2, Value: 2}))

		var sum int32
		for _, v := range m.All() {
			sum += v.Value
		}
		assert.Equal(t, int32(3), sum)

		sum = 0
		for v := range m.Ordered() {
			sum += v.Value
		}
		assert.Equal(t, int32(3), sum)
	})
}

func TestFindWritesThrough(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		m := mustCreate(t, path, 2, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 7, Value: 1}))
		v, ok := m.Find(7)
		require.True(t, ok)
		v.Value = 99
		require.NoError(t, m.Close())

		m = mustOpen(t, path, 0, WithLayout(l))
		got, ok := m.Get(7)
		require.True(t, ok)
		assert.Equal(t, int32(99), got.Value)
	})
}

func TestOrder_Tagged(t *testing.T) {
	path := testPath(t)
	m := mustCreate(t, path, 3, WithLayout(Tagged))
	for i, v := range []int32{'a', 'b', 'c'} {
		require.NoError(t, m.Insert(item{Key: int32(i), Value: v}))
	}
	assert.Equal(t, []int32{'c', 'b', 'a'}, values(m))

	// the freed slot is reused in place
	require.True(t, m.Erase(1))
	require.NoError(t, m.Insert(item{Key: 3, Value: 'd'}))
	assert.Equal(t, []int32{'c', 'd', 'a'}, values(m))
	require.NoError(t, m.Close())

	m = mustOpen(t, path, 0, WithLayout(Tagged))
	assert.Equal(t, []int32{'c', 'd', 'a'}, values(m))
}

func TestOrder_TaggedReusesLastFreed(t *testing.T) {
	m := mustCreate(t, testPath(t), 4, WithLayout(Tagged))
	for i := int32(0); i < 4; i++ {
		require.NoError(t, m.Insert(item{Key: i, Value: i}))
	}
	// slots are handed out highest first: key 0 sits in the last slot
	assert.Equal(t, []int32{3, 2, 1, 0}, values(m))

	require.True(t, m.Erase(2))
	require.True(t, m.Erase(0))
	require.NoError(t, m.Insert(item{Key: 10, Value: 10}))
	assert.Equal(t, []int32{3, 1, 10}, values(m))
}

func TestOrder_Linked(t *testing.T) {
	path := testPath(t)
	m := mustCreate(t, path, 3, WithLayout(Linked))
	for i, v := range []int32{'a', 'b', 'c'} {
		require.NoError(t, m.Insert(item{Key: int32(i), Value: v}))
	}
	assert.Equal(t, []int32{'c', 'b', 'a'}, values(m))

	require.True(t, m.Erase(1))
	require.NoError(t, m.Insert(item{Key: 3, Value: 'd'}))
	assert.Equal(t, []int32{'d', 'c', 'a'}, values(m))
	require.NoError(t, m.Close())

	m = mustOpen(t, path, 0, WithLayout(Linked))
	assert.Equal(t, []int32{'d', 'c', 'a'}, values(m))
}

func TestRoundTrip(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		const capacity = 64
		path := testPath(t)
		rng := rand.New(rand.NewPCG(1, uint64(l)))
		want := make(map[int32]int32)

		m := mustCreate(t, path, capacity, WithLayout(l))
		for i := 0; i < 2000; i++ {
			k := int32(rng.IntN(100))
			switch rng.IntN(4) {
			case 0:
				_, present := want[k]
				assert.Equal(t, present, m.Erase(k))
				delete(want, k)
			case 1:
				v := rng.Int32()
				err := m.InsertOrAssign(item{Key: k, Value: v})
				if _, present := want[k]; present || len(want) < capacity {
					require.NoError(t, err)
					want[k] = v
				} else {
					require.ErrorIs(t, err, ErrStorageFull)
				}
			default:
				v := rng.Int32()
				err := m.Insert(item{Key: k, Value: v})
				switch _, present := want[k]; {
				case present:
					require.ErrorIs(t, err, ErrDuplicateKey)
				case len(want) == capacity:
					require.ErrorIs(t, err, ErrStorageFull)
				default:
					require.NoError(t, err)
					want[k] = v
				}
			}
			require.Equal(t, len(want), m.Len())

			if i%250 == 249 {
				require.NoError(t, m.Close())
				m = mustOpen(t, path, capacity, WithLayout(l))
			}
		}
		require.NoError(t, m.Close())

		m = mustOpen(t, path, capacity, WithLayout(l))
		got := make(map[int32]int32)
		for k, v := range m.All() {
			require.Equal(t, k, v.Key)
			got[k] = v.Value
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("live set mismatch after reopen (-want +got):\n%s", diff)
		}
		assert.Equal(t, uint32(len(want)), m.Stat().Occupied)
	})
}

func TestBadSignature(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		require.NoError(t, mustCreate(t, path, 2, WithLayout(l)).Close())
		patchFile(t, path, func(b []byte) { b[1] = 0 })

		_, err := Open(path, 0, itemKey, WithLayout(l))
		require.ErrorIs(t, err, ErrBadSignature)
		require.ErrorIs(t, err, ErrFormat)
	})
}

type narrowItem struct {
	Key int32
}

func TestItemSizeMismatch(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		require.NoError(t, mustCreate(t, path, 8, WithLayout(l)).Close())

		// 4 and 8 byte values share a record size, so only the header differs
		_, err := Open(path, 0, func(it *narrowItem) int32 { return it.Key }, WithLayout(l))
		require.ErrorIs(t, err, ErrItemSizeMismatch)

		type wideItem struct {
			Key  int32
			Rest [12]byte
		}
		_, err = Open(path, 0, func(it *wideItem) int32 { return it.Key }, WithLayout(l))
		require.ErrorIs(t, err, ErrSizeMismatch)
	})
}

func TestLayoutMismatch(t *testing.T) {
	path := testPath(t)
	require.NoError(t, mustCreate(t, path, 2, WithLayout(Linked)).Close())
	_, err := Open(path, 0, itemKey, WithLayout(Tagged))
	require.ErrorIs(t, err, ErrSizeMismatch)

	path = testPath(t)
	require.NoError(t, mustCreate(t, path, 4, WithLayout(Tagged)).Close())
	_, err = Open(path, 0, itemKey, WithLayout(Linked))
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestSizeMismatchAfterInterruptedExpand(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		m := mustCreate(t, path, 2, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 1, Value: 1}))
		require.NoError(t, m.Close())

		// the file was extended but the capacity field never rewritten
		st, err := os.Stat(path)
		require.NoError(t, err)
		require.NoError(t, os.Truncate(path, st.Size()+2*16))

		_, err = Open(path, 0, itemKey, WithLayout(l))
		require.ErrorIs(t, err, ErrSizeMismatch)

		// truncated files are rejected the same way
		require.NoError(t, os.Truncate(path, st.Size()-1))
		_, err = Open(path, 0, itemKey, WithLayout(l))
		require.ErrorIs(t, err, ErrSizeMismatch)
	})
}

func TestCorruptedTag(t *testing.T) {
	path := testPath(t)
	require.NoError(t, mustCreate(t, path, 2, WithLayout(Tagged)).Close())
	// state word of the first record
	patchFile(t, path, func(b []byte) {
		binary.LittleEndian.PutUint32(b[16:], 0x01020304)
	})

	_, err := Open(path, 0, itemKey, WithLayout(Tagged))
	require.ErrorIs(t, err, ErrCorrupted)
	require.ErrorIs(t, err, ErrFormat)
}

func TestCorruptedLink(t *testing.T) {
	path := testPath(t)
	m := mustCreate(t, path, 2, WithLayout(Linked))
	require.NoError(t, m.Insert(item{Key: 1, Value: 1}))
	require.NoError(t, m.Close())
	// next link of the occupied sentinel
	patchFile(t, path, func(b []byte) {
		binary.LittleEndian.PutUint32(b[16+4:], 99)
	})

	_, err := Open(path, 0, itemKey, WithLayout(Linked))
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestCorruptedDuplicateKeys(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		m := mustCreate(t, path, 2, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 1, Value: 1}))
		require.NoError(t, m.Insert(item{Key: 2, Value: 2}))
		require.NoError(t, m.Close())

		// rewrite key 2 as key 1 wherever it lives
		patchFile(t, path, func(b []byte) {
			for off := 16 + 8; off+8 <= len(b); off += 16 {
				if binary.LittleEndian.Uint32(b[off:]) == 2 {
					binary.LittleEndian.PutUint32(b[off:], 1)
				}
			}
		})

		_, err := Open(path, 0, itemKey, WithLayout(l))
		require.ErrorIs(t, err, ErrCorrupted)
	})
}

func TestClosedMap(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		m := mustCreate(t, testPath(t), 2, WithLayout(l))
		require.NoError(t, m.Insert(item{Key: 1, Value: 1}))
		require.NoError(t, m.Close())
		require.NoError(t, m.Close())

		assert.Equal(t, 0, m.Len())
		assert.Equal(t, uint32(0), m.Capacity())
		_, ok := m.Find(1)
		assert.False(t, ok)
		assert.False(t, m.Erase(1))
		require.ErrorIs(t, m.Insert(item{Key: 2}), ErrClosed)
		require.ErrorIs(t, m.InsertOrAssign(item{Key: 2}), ErrClosed)
		require.ErrorIs(t, m.Expand(4), ErrClosed)
		m.Clear()
		assert.Empty(t, slices.Collect(m.Ordered()))
	})
}

func TestAttach(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		path := testPath(t)
		m, err := Attach(path, 2, itemKey, WithLayout(l))
		require.NoError(t, err)
		require.NoError(t, m.Insert(item{Key: 5, Value: 5}))
		require.NoError(t, m.Close())

		m, err = Attach(path, 4, itemKey, WithLayout(l))
		require.NoError(t, err)
		defer m.Close()
		assert.Equal(t, uint32(4), m.Capacity())
		assert.True(t, m.Contains(5))
	})
}

func TestCreateReplacesExisting(t *testing.T) {
	path := testPath(t)
	m := mustCreate(t, path, 2)
	require.NoError(t, m.Insert(item{Key: 1}))
	require.NoError(t, m.Close())

	m = mustCreate(t, path, 3)
	assert.Equal(t, uint32(3), m.Capacity())
	assert.True(t, m.Empty())
}

func TestMappersAgree(t *testing.T) {
	forEachLayout(t, func(t *testing.T, l Layout) {
		var orders [][]int32
		for _, name := range []string{"portable", "default"} {
			mapper, err := ParseMapper(name)
			require.NoError(t, err)

			path := testPath(t)
			m := mustCreate(t, path, 3, WithLayout(l), WithMapper(mapper))
			require.NoError(t, m.Insert(item{Key: 1, Value: 1}))
			require.NoError(t, m.Insert(item{Key: 2, Value: 2}))
			require.True(t, m.Erase(1))
			require.NoError(t, m.Insert(item{Key: 3, Value: 3}))
			require.NoError(t, m.Expand(5))
			require.NoError(t, m.Close())

			m = mustOpen(t, path, 0, WithLayout(l), WithMapper(mapper))
			orders = append(orders, values(m))
		}
		assert.Equal(t, orders[0], orders[1])
	})
}

func TestStat(t *testing.T) {
	path := testPath(t)
	m := mustCreate(t, path, 3, WithLayout(Linked))
	require.NoError(t, m.Insert(item{Key: 1}))

	st := m.Stat()
	assert.Equal(t, path, st.Path)
	assert.Equal(t, Linked, st.Layout)
	assert.Equal(t, uint32(8), st.ItemSize)
	assert.Equal(t, uint64(16), st.RecordSize)
	assert.Equal(t, uint64(16+5*16), st.FileSize)
	assert.Equal(t, uint32(3), st.Capacity)
	assert.Equal(t, uint32(1), st.Occupied)
	assert.Equal(t, uint32(2), st.Free)
	assert.NotEmpty(t, st.Mapper)

	// the header carries the occupied count
	require.NoError(t, m.Close())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(b[12:]))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	path := testPath(t)
	m := mustCreate(t, path, 1, WithLogger(logger))
	require.NoError(t, m.Close())
	m = mustOpen(t, path, 4, WithLogger(logger))
	require.NoError(t, m.Close())

	out := buf.String()
	assert.Contains(t, out, `msg="created file"`)
	assert.Contains(t, out, `msg="opened file"`)
	assert.Contains(t, out, `msg="expanded file"`)
	assert.Contains(t, out, `msg="closing file"`)
	assert.Contains(t, out, "to=4")
}
