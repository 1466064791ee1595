// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build !(linux || darwin || freebsd)

package region

// DefaultMapper returns the mapper used when none is configured.
func DefaultMapper() Mapper {
	return PortableMapper{}
}

func platformMapper(string) (Mapper, bool) {
	return nil, false
}
