// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package index maps keys to the slots holding their values.  The index
// lives only in process memory and is rebuilt from the mapped records every
// time a file is opened.
package index

import (
	"errors"
	"fmt"
	"iter"
)

// ErrDuplicateKey is returned by Build when two occupied slots carry the
// same key.
var ErrDuplicateKey = errors.New("duplicate keys aren't supported")

// Index is a key -> slot map.
type Index[K comparable] struct {
	slots map[K]uint32
}

// New returns an empty index sized for about sizeHint keys.
func New[K comparable](sizeHint int) *Index[K] {
	return &Index[K]{
		slots: make(map[K]uint32, sizeHint),
	}
}

// Build indexes every slot yielded by slots under the key keyAt returns for
// it.
func Build[K comparable](slots iter.Seq[uint32], keyAt func(slot uint32) K) (*Index[K], error) {
	ix := New[K](0)
	for slot := range slots {
		k := keyAt(slot)
		if prev, ok := ix.slots[k]; ok {
			return nil, fmt.Errorf("key %v in slots %d and %d: %w", k, prev, slot, ErrDuplicateKey)
		}
		ix.slots[k] = slot
	}
	return ix, nil
}

func (ix *Index[K]) Lookup(k K) (slot uint32, ok bool) {
	slot, ok = ix.slots[k]
	return
}

// Insert adds k -> slot and reports false, changing nothing, if k is
// already present.
func (ix *Index[K]) Insert(k K, slot uint32) bool {
	if _, ok := ix.slots[k]; ok {
		return false
	}
	ix.slots[k] = slot
	return true
}

// Set adds or replaces k -> slot.
func (ix *Index[K]) Set(k K, slot uint32) {
	ix.slots[k] = slot
}

// Delete removes k and returns the slot it pointed at.
func (ix *Index[K]) Delete(k K) (slot uint32, ok bool) {
	slot, ok = ix.slots[k]
	if ok {
		delete(ix.slots, k)
	}
	return
}

func (ix *Index[K]) Len() int {
	return len(ix.slots)
}

func (ix *Index[K]) Clear() {
	clear(ix.slots)
}

// All yields every entry in unspecified order.
func (ix *Index[K]) All() iter.Seq2[K, uint32] {
	return func(yield func(K, uint32) bool) {
		for k, slot := range ix.slots {
			if !yield(k, slot) {
				return
			}
		}
	}
}
