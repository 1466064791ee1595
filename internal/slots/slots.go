// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package slots tracks which records of a mapped file hold values and which
// are free.  Two layouts are supported: Tagged keeps a state word in every
// record and the free list in process memory, Linked threads every record
// onto one of two rings stored in the file itself.
package slots

import (
	"fmt"
	"iter"

	"github.com/bpowers/pmap/internal/format"
	"github.com/bpowers/pmap/internal/ondisk"
)

// None is never a valid user slot in either layout.
const None uint32 = 0

// Allocator hands out and reclaims slots of a mapped record array.
type Allocator interface {
	Layout() format.Layout
	Capacity() uint32
	// Free returns the number of slots Acquire can still hand out.
	Free() uint32
	// Acquire takes a free slot, lets fill write its payload, and only then
	// marks it occupied.  It returns None when no slot is free.
	Acquire(fill func(payload []byte)) uint32
	// Release zeroes the payload of an occupied slot and returns it to the
	// free space.
	Release(slot uint32)
	Payload(slot uint32) []byte
	// Occupied yields every occupied slot in allocator order.  The slot
	// just yielded may be released before resuming.
	Occupied() iter.Seq[uint32]
	// Grow rebinds the allocator to recs, which must already be sized for
	// newCapacity, and adds the new slots to the free space.
	Grow(recs ondisk.Records, newCapacity uint32)
}

// Format initializes the records of a fresh file so that every slot is free.
func Format(l format.Layout, recs ondisk.Records, capacity uint32) {
	checkRecords(l, recs, capacity)
	switch l {
	case format.Tagged:
		formatTagged(recs, capacity)
	case format.Linked:
		formatRings(recs, capacity)
	default:
		panic(fmt.Errorf("slots: unknown layout %s", l))
	}
}

// Attach rebuilds an allocator from the records of an existing file.  It
// returns an error wrapping format.ErrCorrupted if the bookkeeping stored in
// the records is inconsistent.
func Attach(l format.Layout, recs ondisk.Records, capacity uint32) (Allocator, error) {
	checkRecords(l, recs, capacity)
	switch l {
	case format.Tagged:
		return attachFreeStack(recs, capacity)
	case format.Linked:
		return attachRings(recs, capacity)
	default:
		return nil, fmt.Errorf("slots: unknown layout %s", l)
	}
}

func checkRecords(l format.Layout, recs ondisk.Records, capacity uint32) {
	if want := l.RecordCount(capacity); uint64(recs.Len()) != want {
		panic(fmt.Errorf("slots: %s capacity %d needs %d records, have %d", l, capacity, want, recs.Len()))
	}
}
