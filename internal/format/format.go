// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package format

import (
	"fmt"
	"math"

	"github.com/bpowers/pmap/internal/ondisk"
)

const (
	HeaderSize    = 16
	PayloadOffset = 8

	offSignature = 0
	offItemSize  = 4
	offCapacity  = 8
	offOccupied  = 12
)

// Record prefix fields.
const (
	OffState = 0 // Tagged
	OffPrev  = 0 // Linked
	OffNext  = 4 // Linked
)

// State tags of Tagged records.
const (
	TagEmpty    uint32 = 0
	TagOccupied uint32 = 0xFEEDDA1A
)

// Signature is the magic number at the start of every file.
var Signature = [4]byte{0xDA, 0x1A, 0xF1, 0x1E}

// MaxItemSize bounds payloads so a record size always fits in a uint32.
const MaxItemSize = math.MaxUint32 - 2*PayloadOffset

// Layout selects how free and occupied slots are tracked inside records.
type Layout uint8

const (
	// Tagged records carry a state word; free slots are tracked in memory.
	Tagged Layout = iota
	// Linked records carry ring links; free and occupied rings live on disk.
	Linked
)

func (l Layout) String() string {
	switch l {
	case Tagged:
		return "tagged"
	case Linked:
		return "linked"
	default:
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
}

// ParseLayout is the inverse of Layout.String.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "tagged":
		return Tagged, nil
	case "linked":
		return Linked, nil
	}
	return 0, fmt.Errorf("unknown layout %q (want tagged or linked)", s)
}

// Sentinels returns the number of reserved records ahead of user records.
func (l Layout) Sentinels() uint32 {
	if l == Linked {
		return 2
	}
	return 0
}

// MaxCapacity is the largest capacity whose record count fits in a uint32.
func (l Layout) MaxCapacity() uint32 {
	return math.MaxUint32 - l.Sentinels()
}

// RecordCount returns how many records a file of the given capacity holds.
func (l Layout) RecordCount(capacity uint32) uint64 {
	return uint64(capacity) + uint64(l.Sentinels())
}

func align8(x uint64) uint64 {
	return (x + 7) &^ 7
}

// RecordSize returns the size of one record carrying an itemSize payload.
func RecordSize(itemSize uint32) uint64 {
	return align8(PayloadOffset + uint64(itemSize))
}

// FileSize returns the exact length of a file with the given shape.
func FileSize(l Layout, itemSize, capacity uint32) uint64 {
	return HeaderSize + l.RecordCount(capacity)*RecordSize(itemSize)
}

// CheckShape reports whether a file with the given shape can be mapped on
// this platform.
func CheckShape(l Layout, itemSize, capacity uint32) error {
	if itemSize > MaxItemSize {
		return fmt.Errorf("item size %d exceeds %d: %w", itemSize, uint32(MaxItemSize), ErrTooLarge)
	}
	if capacity > l.MaxCapacity() {
		return fmt.Errorf("capacity %d exceeds %d: %w", capacity, l.MaxCapacity(), ErrTooLarge)
	}
	size := FileSize(l, itemSize, capacity)
	if size > math.MaxInt {
		return fmt.Errorf("file size %d exceeds the address space: %w", size, ErrTooLarge)
	}
	return nil
}

// Records returns the record array of a mapped file.  data must already
// have passed Validate (or been sized by FileSize).
func Records(data []byte, itemSize uint32) ondisk.Records {
	return ondisk.NewRecords(data[HeaderSize:], int(RecordSize(itemSize)), PayloadOffset, int(itemSize))
}
