// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package ondisk provides fixed-width views over an array of equally sized
// records living in mapped memory.  Nothing here copies: every accessor reads
// or writes the underlying bytes directly.
package ondisk

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// Records is a view of n contiguous records of stride bytes each.  Each
// record carries a fixed-width prefix of little-endian uint32 fields
// followed by a payload at payloadOff.
type Records struct {
	b          []byte
	stride     int
	payloadOff int
	payloadLen int
}

// NewRecords returns a view over b.  len(b) must be a multiple of stride, and
// the payload must fit inside a record.
func NewRecords(b []byte, stride, payloadOff, payloadLen int) Records {
	if stride <= 0 || len(b)%stride != 0 {
		panic(fmt.Errorf("ondisk: %d bytes is not a whole number of %d-byte records", len(b), stride))
	}
	if payloadOff < 0 || payloadLen < 0 || payloadOff+payloadLen > stride {
		panic(fmt.Errorf("ondisk: payload [%d, %d) doesn't fit a %d-byte record", payloadOff, payloadOff+payloadLen, stride))
	}
	return Records{
		b:          b,
		stride:     stride,
		payloadOff: payloadOff,
		payloadLen: payloadLen,
	}
}

// Len returns the number of records in the view.
func (r Records) Len() int {
	if r.stride == 0 {
		return 0
	}
	return len(r.b) / r.stride
}

// Stride returns the size in bytes of a single record.
func (r Records) Stride() int {
	return r.stride
}

func (r Records) record(i uint32) []byte {
	off := int(i) * r.stride
	return r.b[off : off+r.stride : off+r.stride]
}

// U32 reads the uint32 field at byte offset off of record i.
func (r Records) U32(i uint32, off int) uint32 {
	rec := r.record(i)
	return binary.LittleEndian.Uint32(rec[off : off+4])
}

// SetU32 writes the uint32 field at byte offset off of record i.
func (r Records) SetU32(i uint32, off int, v uint32) {
	rec := r.record(i)
	binary.LittleEndian.PutUint32(rec[off:off+4], v)
}

// Payload returns the payload bytes of record i.  Writes through the returned
// slice land in the mapping.
func (r Records) Payload(i uint32) []byte {
	rec := r.record(i)
	return rec[r.payloadOff : r.payloadOff+r.payloadLen : r.payloadOff+r.payloadLen]
}

// View reinterprets the start of b as a *T without copying.  It panics if b
// is too short or not suitably aligned for T; both indicate a layout bug
// rather than bad input.
func View[T any](b []byte) *T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(b) < size {
		panic(fmt.Errorf("ondisk: %d bytes is too short for a %d-byte %T", len(b), size, zero))
	}
	p := unsafe.Pointer(unsafe.SliceData(b))
	if uintptr(p)%unsafe.Alignof(zero) != 0 {
		panic(fmt.Errorf("ondisk: %p is misaligned for %T", p, zero))
	}
	return (*T)(p)
}
