// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package slots

import (
	"fmt"
	"iter"

	"github.com/bpowers/pmap/internal/format"
	"github.com/bpowers/pmap/internal/ondisk"
	"github.com/bpowers/pmap/internal/zero"
)

// FreeStack is the allocator for the Tagged layout.  Slot i lives in record
// i-1.  Free slots are kept on a stack in process memory, so the most
// recently released slot is handed out first.
type FreeStack struct {
	recs     ondisk.Records
	capacity uint32
	free     []uint32
}

var _ Allocator = (*FreeStack)(nil)

func formatTagged(recs ondisk.Records, capacity uint32) {
	for i := uint32(0); i < capacity; i++ {
		recs.SetU32(i, format.OffState, format.TagEmpty)
		zero.Bytes(recs.Payload(i))
	}
}

// attachFreeStack scans every state tag once and pushes free slots in
// ascending order.  Free payloads are scrubbed if they aren't already zero.
func attachFreeStack(recs ondisk.Records, capacity uint32) (*FreeStack, error) {
	s := &FreeStack{
		recs:     recs,
		capacity: capacity,
		free:     make([]uint32, 0, capacity),
	}
	for i := uint32(0); i < capacity; i++ {
		switch tag := recs.U32(i, format.OffState); tag {
		case format.TagEmpty:
			// left behind by an insert interrupted before its commit
			if p := recs.Payload(i); !zero.IsZero(p) {
				zero.Bytes(p)
			}
			s.free = append(s.free, i+1)
		case format.TagOccupied:
		default:
			return nil, fmt.Errorf("slot %d: unknown state %#x: %w", i+1, tag, format.ErrCorrupted)
		}
	}
	return s, nil
}

func (s *FreeStack) Layout() format.Layout { return format.Tagged }
func (s *FreeStack) Capacity() uint32      { return s.capacity }
func (s *FreeStack) Free() uint32          { return uint32(len(s.free)) }

func (s *FreeStack) record(slot uint32) uint32 {
	if slot == None || slot > s.capacity {
		panic(fmt.Errorf("slots: slot %d out of range [1, %d]", slot, s.capacity))
	}
	return slot - 1
}

func (s *FreeStack) Payload(slot uint32) []byte {
	return s.recs.Payload(s.record(slot))
}

func (s *FreeStack) Acquire(fill func(payload []byte)) uint32 {
	n := len(s.free)
	if n == 0 {
		return None
	}
	slot := s.free[n-1]
	s.free = s.free[:n-1]

	rec := s.record(slot)
	if fill != nil {
		fill(s.recs.Payload(rec))
	}
	s.recs.SetU32(rec, format.OffState, format.TagOccupied)
	return slot
}

func (s *FreeStack) Release(slot uint32) {
	rec := s.record(slot)
	if s.recs.U32(rec, format.OffState) != format.TagOccupied {
		panic(fmt.Errorf("slots: release of free slot %d", slot))
	}
	zero.Bytes(s.recs.Payload(rec))
	s.recs.SetU32(rec, format.OffState, format.TagEmpty)
	s.free = append(s.free, slot)
}

// Occupied yields occupied slots in ascending order.
func (s *FreeStack) Occupied() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for i := uint32(0); i < s.capacity; i++ {
			if s.recs.U32(i, format.OffState) != format.TagOccupied {
				continue
			}
			if !yield(i + 1) {
				return
			}
		}
	}
}

func (s *FreeStack) Grow(recs ondisk.Records, newCapacity uint32) {
	checkRecords(format.Tagged, recs, newCapacity)
	if newCapacity < s.capacity {
		panic(fmt.Errorf("slots: can't shrink from %d to %d", s.capacity, newCapacity))
	}
	s.recs = recs
	for i := s.capacity; i < newCapacity; i++ {
		recs.SetU32(i, format.OffState, format.TagEmpty)
		zero.Bytes(recs.Payload(i))
		s.free = append(s.free, i+1)
	}
	s.capacity = newCapacity
}
