// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package slots

import (
	"fmt"
	"iter"

	"github.com/bpowers/pmap/internal/bitset"
	"github.com/bpowers/pmap/internal/format"
	"github.com/bpowers/pmap/internal/ondisk"
	"github.com/bpowers/pmap/internal/zero"
)

// Sentinel slots of the Linked layout.
const (
	OccupiedHead uint32 = 0
	FreeHead     uint32 = 1

	firstUserSlot = 2
)

// Rings is the allocator for the Linked layout.  Every record sits on
// exactly one of two circular doubly linked rings anchored at the sentinel
// records: occupied slots on OccupiedHead's, free slots on FreeHead's.  Slot
// i lives in record i.
type Rings struct {
	recs     ondisk.Records
	capacity uint32
	free     uint32
}

var _ Allocator = (*Rings)(nil)

func (r *Rings) prev(s uint32) uint32 { return r.recs.U32(s, format.OffPrev) }
func (r *Rings) next(s uint32) uint32 { return r.recs.U32(s, format.OffNext) }

func (r *Rings) setPrev(s, v uint32) { r.recs.SetU32(s, format.OffPrev, v) }
func (r *Rings) setNext(s, v uint32) { r.recs.SetU32(s, format.OffNext, v) }

func (r *Rings) unlink(s uint32) {
	p, n := r.prev(s), r.next(s)
	r.setNext(p, n)
	r.setPrev(n, p)
}

// linkAfter inserts s into at's ring directly after at.
func (r *Rings) linkAfter(at, s uint32) {
	n := r.next(at)
	r.setPrev(s, at)
	r.setNext(s, n)
	r.setPrev(n, s)
	r.setNext(at, s)
}

func formatRings(recs ondisk.Records, capacity uint32) {
	r := &Rings{recs: recs}
	r.setPrev(OccupiedHead, OccupiedHead)
	r.setNext(OccupiedHead, OccupiedHead)
	r.setPrev(FreeHead, FreeHead)
	r.setNext(FreeHead, FreeHead)
	zero.Bytes(recs.Payload(OccupiedHead))
	zero.Bytes(recs.Payload(FreeHead))
	for s := uint32(firstUserSlot); s < capacity+firstUserSlot; s++ {
		zero.Bytes(recs.Payload(s))
		r.linkAfter(r.prev(FreeHead), s)
	}
}

// attachRings walks the occupied ring and checks that it is well formed:
// every link is in range, no slot is visited twice, each slot's prev link
// points back where the walk came from, and the ring closes at its sentinel.
// The free ring is trusted.
func attachRings(recs ondisk.Records, capacity uint32) (*Rings, error) {
	r := &Rings{recs: recs, capacity: capacity}
	seen := bitset.New(capacity + firstUserSlot)

	var occupied uint32
	from := OccupiedHead
	for s := r.next(OccupiedHead); s != OccupiedHead; s = r.next(s) {
		if s < firstUserSlot || s >= capacity+firstUserSlot {
			return nil, fmt.Errorf("slot %d links to out of range slot %d: %w", from, s, format.ErrCorrupted)
		}
		if seen.TestAndSet(s) {
			return nil, fmt.Errorf("occupied ring revisits slot %d: %w", s, format.ErrCorrupted)
		}
		if p := r.prev(s); p != from {
			return nil, fmt.Errorf("slot %d links back to %d, want %d: %w", s, p, from, format.ErrCorrupted)
		}
		occupied++
		from = s
	}
	if p := r.prev(OccupiedHead); p != from {
		return nil, fmt.Errorf("occupied ring closes at %d, want %d: %w", p, from, format.ErrCorrupted)
	}

	r.free = capacity - occupied
	return r, nil
}

func (r *Rings) Layout() format.Layout { return format.Linked }
func (r *Rings) Capacity() uint32      { return r.capacity }
func (r *Rings) Free() uint32          { return r.free }

func (r *Rings) checkSlot(slot uint32) {
	if slot < firstUserSlot || slot >= r.capacity+firstUserSlot {
		panic(fmt.Errorf("slots: slot %d out of range [%d, %d]", slot, firstUserSlot, r.capacity+1))
	}
}

func (r *Rings) Payload(slot uint32) []byte {
	r.checkSlot(slot)
	return r.recs.Payload(slot)
}

// Acquire takes the slot at the head of the free ring and moves it to the
// head of the occupied ring.
func (r *Rings) Acquire(fill func(payload []byte)) uint32 {
	if r.free == 0 {
		return None
	}
	s := r.next(FreeHead)
	r.checkSlot(s)
	if fill != nil {
		fill(r.recs.Payload(s))
	}
	r.unlink(s)
	r.linkAfter(OccupiedHead, s)
	r.free--
	return s
}

func (r *Rings) Release(slot uint32) {
	r.checkSlot(slot)
	r.unlink(slot)
	zero.Bytes(r.recs.Payload(slot))
	r.linkAfter(FreeHead, slot)
	r.free++
}

// Occupied yields occupied slots most recently acquired first.
func (r *Rings) Occupied() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for s := r.next(OccupiedHead); s != OccupiedHead; {
			next := r.next(s)
			if !yield(s) {
				return
			}
			s = next
		}
	}
}

// Grow appends the new slots at the tail of the free ring.
func (r *Rings) Grow(recs ondisk.Records, newCapacity uint32) {
	checkRecords(format.Linked, recs, newCapacity)
	if newCapacity < r.capacity {
		panic(fmt.Errorf("slots: can't shrink from %d to %d", r.capacity, newCapacity))
	}
	r.recs = recs
	for s := r.capacity + firstUserSlot; s < newCapacity+firstUserSlot; s++ {
		zero.Bytes(recs.Payload(s))
		r.linkAfter(r.prev(FreeHead), s)
	}
	r.free += newCapacity - r.capacity
	r.capacity = newCapacity
}
