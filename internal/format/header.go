// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Header is a live view of the header at the start of a mapped file.
// Setters write straight into the mapping.
type Header []byte

func (h Header) Signature() [4]byte {
	var sig [4]byte
	copy(sig[:], h[offSignature:offSignature+4])
	return sig
}

func (h Header) ItemSize() uint32 {
	return binary.LittleEndian.Uint32(h[offItemSize : offItemSize+4])
}

func (h Header) Capacity() uint32 {
	return binary.LittleEndian.Uint32(h[offCapacity : offCapacity+4])
}

func (h Header) SetCapacity(n uint32) {
	binary.LittleEndian.PutUint32(h[offCapacity:offCapacity+4], n)
}

func (h Header) Occupied() uint32 {
	return binary.LittleEndian.Uint32(h[offOccupied : offOccupied+4])
}

func (h Header) SetOccupied(n uint32) {
	binary.LittleEndian.PutUint32(h[offOccupied:offOccupied+4], n)
}

// Encode writes a fresh header describing an empty file into dst.
func Encode(dst []byte, itemSize, capacity uint32) error {
	if len(dst) < HeaderSize {
		return fmt.Errorf("header buffer too short: %d < %d", len(dst), HeaderSize)
	}
	copy(dst[offSignature:offSignature+4], Signature[:])
	h := Header(dst[:HeaderSize])
	binary.LittleEndian.PutUint32(h[offItemSize:offItemSize+4], itemSize)
	h.SetCapacity(capacity)
	h.SetOccupied(0)
	return nil
}

// Validate checks a mapped file against the layout and the caller's item
// size and returns a view of its header.  Checks run in a fixed order and
// the first failure wins: too small, bad signature, size mismatch, item size
// mismatch.
func Validate(data []byte, l Layout, itemSize uint32) (Header, error) {
	minSize := HeaderSize + uint64(l.Sentinels()+1)*RecordSize(itemSize)
	if uint64(len(data)) < minSize {
		return nil, fmt.Errorf("%d bytes < %d: %w", len(data), minSize, ErrTooSmall)
	}

	h := Header(data[:HeaderSize])
	if sig := h.Signature(); !bytes.Equal(sig[:], Signature[:]) {
		return nil, fmt.Errorf("%x: %w", sig, ErrBadSignature)
	}

	if want := FileSize(l, itemSize, h.Capacity()); uint64(len(data)) != want {
		return nil, fmt.Errorf("%s capacity %d wants %d bytes, have %d: %w", l, h.Capacity(), want, len(data), ErrSizeMismatch)
	}

	if h.ItemSize() != itemSize {
		return nil, fmt.Errorf("file has %d-byte items, want %d: %w", h.ItemSize(), itemSize, ErrItemSizeMismatch)
	}

	return h, nil
}
