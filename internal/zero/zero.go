// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package zero scrubs record payloads when slots are returned to the free
// space, so a released slot never leaks a stale value into the file.
package zero

// Bytes sets every byte of b to 0 in place.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// IsZero reports whether every byte of b is 0.
func IsZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
