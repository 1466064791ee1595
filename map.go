// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pmap

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"

	"github.com/natefinch/atomic"

	"github.com/bpowers/pmap/internal/format"
	"github.com/bpowers/pmap/internal/index"
	"github.com/bpowers/pmap/internal/ondisk"
	"github.com/bpowers/pmap/internal/region"
	"github.com/bpowers/pmap/internal/slots"
)

// Map is a fixed-capacity store of V values keyed by K, backed by a mapped
// file.  Capacity only changes through Expand (or Open with a larger
// minimum).
type Map[K comparable, V any] struct {
	path     string
	layout   Layout
	itemSize uint32
	key      func(*V) K
	mapper   Mapper
	logger   *slog.Logger

	r      *region.Region
	header format.Header
	alloc  slots.Allocator
	index  *index.Index[K]
}

// Stat describes an open Map.
type Stat struct {
	Path       string
	Layout     Layout
	Mapper     string
	ItemSize   uint32
	RecordSize uint64
	FileSize   uint64
	Capacity   uint32
	Occupied   uint32
	Free       uint32
}

// Create writes a new file at path holding capacity free slots, replacing
// any file already there, and opens it.
func Create[K comparable, V any](path string, capacity uint32, key func(*V) K, opts ...Option) (*Map[K, V], error) {
	o := newOptions(opts)
	itemSize, err := itemSizeOf[V]()
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, errors.New("pmap: nil key function")
	}
	if capacity == 0 {
		return nil, fmt.Errorf("%s: capacity must be at least 1: %w", path, ErrTooSmall)
	}
	if err := create(path, o.layout, itemSize, capacity); err != nil {
		return nil, err
	}
	o.logger.Debug("created file", "path", path, "layout", o.layout, "capacity", capacity, "item_size", itemSize)
	return open(path, 0, key, itemSize, o)
}

func create(path string, l Layout, itemSize, capacity uint32) error {
	if err := format.CheckShape(l, itemSize, capacity); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	image := make([]byte, format.FileSize(l, itemSize, capacity))
	if err := format.Encode(image, itemSize, capacity); err != nil {
		return fmt.Errorf("format.Encode: %w", err)
	}
	slots.Format(l, format.Records(image, itemSize), capacity)

	if err := atomic.WriteFile(path, bytes.NewReader(image)); err != nil {
		return &OSError{Op: "create", Path: path, Err: err}
	}
	return nil
}

// Open maps the existing file at path.  If the file holds fewer than
// minCapacity slots it is expanded first.
func Open[K comparable, V any](path string, minCapacity uint32, key func(*V) K, opts ...Option) (*Map[K, V], error) {
	o := newOptions(opts)
	itemSize, err := itemSizeOf[V]()
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, errors.New("pmap: nil key function")
	}
	return open(path, minCapacity, key, itemSize, o)
}

// Attach opens the file at path if it exists, expanding it to capacity if
// needed, and creates it with capacity slots otherwise.
func Attach[K comparable, V any](path string, capacity uint32, key func(*V) K, opts ...Option) (*Map[K, V], error) {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Create(path, capacity, key, opts...)
	} else if err != nil {
		return nil, &OSError{Op: "stat", Path: path, Err: err}
	}
	return Open(path, capacity, key, opts...)
}

func open[K comparable, V any](path string, minCapacity uint32, key func(*V) K, itemSize uint32, o options) (*Map[K, V], error) {
	r, err := mapFile(path, o.mapper)
	if err != nil {
		return nil, err
	}

	m := &Map[K, V]{
		path:     path,
		layout:   o.layout,
		itemSize: itemSize,
		key:      key,
		mapper:   o.mapper,
		logger:   o.logger,
	}
	if err := m.attach(r); err != nil {
		_ = r.Close()
		return nil, err
	}

	o.logger.Debug("opened file", "path", path, "layout", m.layout, "capacity", m.Capacity(), "occupied", m.Len())

	if minCapacity > m.Capacity() {
		if err := m.Expand(minCapacity); err != nil {
			_ = m.Close()
			return nil, err
		}
	}
	return m, nil
}

func mapFile(path string, mapper Mapper) (*region.Region, error) {
	r, err := region.Open(path, region.WithMapper(mapper))
	if errors.Is(err, region.ErrEmptyFile) {
		return nil, fmt.Errorf("%s: empty file: %w", path, ErrTooSmall)
	}
	return r, err
}

// attach validates the mapped file, rebuilds the allocator and the key
// index from it, and takes ownership of r on success.
func (m *Map[K, V]) attach(r *region.Region) error {
	header, err := format.Validate(r.Bytes(), m.layout, m.itemSize)
	if err != nil {
		return fmt.Errorf("%s: %w", m.path, err)
	}
	capacity := header.Capacity()
	alloc, err := slots.Attach(m.layout, format.Records(r.Bytes(), m.itemSize), capacity)
	if err != nil {
		return fmt.Errorf("%s: %w", m.path, err)
	}

	m.r = r
	m.header = header
	m.alloc = alloc

	idx, err := index.Build(alloc.Occupied(), m.keyAt)
	if err != nil {
		m.r, m.header, m.alloc = nil, nil, nil
		return fmt.Errorf("%s: %v: %w", m.path, err, ErrCorrupted)
	}
	m.index = idx
	m.syncOccupied()
	return nil
}

func (m *Map[K, V]) value(slot uint32) *V {
	return ondisk.View[V](m.alloc.Payload(slot))
}

func (m *Map[K, V]) keyAt(slot uint32) K {
	return m.key(m.value(slot))
}

// syncOccupied rewrites the header's occupied count.  The count is
// informational: opening always recounts from the slots themselves.
func (m *Map[K, V]) syncOccupied() {
	m.header.SetOccupied(uint32(m.index.Len()))
}

func (m *Map[K, V]) closed() bool {
	return m.r == nil
}

// Expand grows the file to hold newCapacity slots.  Existing values keep
// their slots.  Pointers returned by Find and iteration are invalid
// afterwards.  Asking for no more than the current capacity is a no-op.
//
// The file is never mapped twice: the old mapping is released, the file
// extended and mapped again, and the capacity field written last.  If
// anything fails the Map is closed.
func (m *Map[K, V]) Expand(newCapacity uint32) error {
	if m.closed() {
		return ErrClosed
	}
	oldCapacity := m.Capacity()
	if newCapacity <= oldCapacity {
		return nil
	}
	if err := format.CheckShape(m.layout, m.itemSize, newCapacity); err != nil {
		return fmt.Errorf("%s: %w", m.path, err)
	}
	size := format.FileSize(m.layout, m.itemSize, newCapacity)

	err := m.r.Close()
	m.r, m.header = nil, nil
	if err != nil {
		m.release()
		return err
	}
	if err := region.Resize(m.path, int64(size)); err != nil {
		m.release()
		return err
	}
	r, err := region.Open(m.path, region.WithMapper(m.mapper))
	if err != nil {
		m.release()
		return err
	}
	if uint64(r.Size()) != size {
		_ = r.Close()
		m.release()
		return fmt.Errorf("%s: mapped %d bytes after resize to %d: %w", m.path, r.Size(), size, ErrSizeMismatch)
	}

	m.r = r
	m.header = format.Header(r.Bytes()[:format.HeaderSize])
	m.alloc.Grow(format.Records(r.Bytes(), m.itemSize), newCapacity)
	m.header.SetCapacity(newCapacity)

	m.logger.Debug("expanded file", "path", m.path, "layout", m.layout, "from", oldCapacity, "to", newCapacity)
	return nil
}

// release drops every reference into the mapping, leaving the Map closed.
func (m *Map[K, V]) release() {
	m.r = nil
	m.header = nil
	m.alloc = nil
	m.index = nil
}

// Capacity returns the number of slots in the file.
func (m *Map[K, V]) Capacity() uint32 {
	if m.closed() {
		return 0
	}
	return m.alloc.Capacity()
}

// Len returns the number of stored values.
func (m *Map[K, V]) Len() int {
	if m.closed() {
		return 0
	}
	return m.index.Len()
}

func (m *Map[K, V]) Empty() bool {
	return m.Len() == 0
}

// FullyOccupied reports whether Insert of a new key would fail with
// ErrStorageFull.
func (m *Map[K, V]) FullyOccupied() bool {
	if m.closed() {
		return false
	}
	return m.alloc.Free() == 0
}

// Insert stores v under its key.  It fails with ErrDuplicateKey if the key
// is already present and with ErrStorageFull if every slot is taken.
func (m *Map[K, V]) Insert(v V) error {
	if m.closed() {
		return ErrClosed
	}
	k := m.key(&v)
	if _, ok := m.index.Lookup(k); ok {
		return fmt.Errorf("%v: %w", k, ErrDuplicateKey)
	}
	return m.insert(k, v)
}

func (m *Map[K, V]) insert(k K, v V) error {
	slot := m.alloc.Acquire(func(payload []byte) {
		*ondisk.View[V](payload) = v
	})
	if slot == slots.None {
		return fmt.Errorf("%d slots: %w", m.alloc.Capacity(), ErrStorageFull)
	}
	m.index.Insert(k, slot)
	m.syncOccupied()
	return nil
}

// InsertOrAssign overwrites the value stored under v's key in place, or
// inserts v if the key is absent.
func (m *Map[K, V]) InsertOrAssign(v V) error {
	if m.closed() {
		return ErrClosed
	}
	k := m.key(&v)
	if slot, ok := m.index.Lookup(k); ok {
		*m.value(slot) = v
		return nil
	}
	return m.insert(k, v)
}

// Find returns a pointer to the value stored under k.  The pointer refers
// to the mapping: writes through it change the file.  Changing the key
// fields through it is not supported.  It is valid until the value is
// erased or the Map is expanded or closed.
func (m *Map[K, V]) Find(k K) (*V, bool) {
	if m.closed() {
		return nil, false
	}
	slot, ok := m.index.Lookup(k)
	if !ok {
		return nil, false
	}
	return m.value(slot), true
}

// Get returns a copy of the value stored under k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	if p, ok := m.Find(k); ok {
		return *p, true
	}
	var zero V
	return zero, false
}

// Contains reports whether a value is stored under k.
func (m *Map[K, V]) Contains(k K) bool {
	_, ok := m.Find(k)
	return ok
}

// Erase removes the value stored under k, reporting whether there was one.
func (m *Map[K, V]) Erase(k K) bool {
	if m.closed() {
		return false
	}
	slot, ok := m.index.Delete(k)
	if !ok {
		return false
	}
	m.alloc.Release(slot)
	m.syncOccupied()
	return true
}

// Clear removes every value.
func (m *Map[K, V]) Clear() {
	if m.closed() {
		return
	}
	for _, slot := range m.index.All() {
		m.alloc.Release(slot)
	}
	m.index.Clear()
	m.syncOccupied()
}

// All yields every key and a pointer to its value, in no particular order.
// The Map must not be modified during iteration.
func (m *Map[K, V]) All() iter.Seq2[K, *V] {
	return func(yield func(K, *V) bool) {
		if m.closed() {
			return
		}
		for k, slot := range m.index.All() {
			if !yield(k, m.value(slot)) {
				return
			}
		}
	}
}

// Ordered yields every value in slot order: ascending slot for Tagged files,
// most recently inserted first for Linked files.  The Map must not be
// modified during iteration.
func (m *Map[K, V]) Ordered() iter.Seq[*V] {
	return func(yield func(*V) bool) {
		if m.closed() {
			return
		}
		for slot := range m.alloc.Occupied() {
			if !yield(m.value(slot)) {
				return
			}
		}
	}
}

func (m *Map[K, V]) Stat() Stat {
	s := Stat{
		Path:       m.path,
		Layout:     m.layout,
		Mapper:     fmt.Sprint(m.mapper),
		ItemSize:   m.itemSize,
		RecordSize: format.RecordSize(m.itemSize),
	}
	if m.closed() {
		return s
	}
	s.FileSize = uint64(m.r.Size())
	s.Capacity = m.alloc.Capacity()
	s.Occupied = uint32(m.index.Len())
	s.Free = m.alloc.Free()
	return s
}

// Close releases the mapping and the file handle.  Values written through
// the mapping remain in the file.  Closing a closed Map does nothing.
func (m *Map[K, V]) Close() error {
	if m.closed() {
		return nil
	}
	m.logger.Debug("closing file", "path", m.path, "capacity", m.Capacity(), "occupied", m.Len())
	err := m.r.Close()
	m.release()
	return err
}
