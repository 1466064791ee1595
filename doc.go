// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package pmap is a key/value store whose values live inside a memory-mapped
// file.  The bytes on disk are the bytes in memory, so reopening a store
// costs a scan to rebuild the key index and nothing else: values are never
// serialized.
//
// Values are fixed-size, pointer-free Go types.  The key of a value is
// derived from the value itself by a caller-supplied function:
//
//	type item struct {
//		ID    uint64
//		Count int64
//	}
//
//	m, err := pmap.Attach("items.pmap", 1024, func(it *item) uint64 { return it.ID })
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//	err = m.Insert(item{ID: 1, Count: 3})
//
// A Map is not safe for concurrent use, and a file must only be opened by
// one Map at a time.  Nothing is flushed explicitly: the operating system
// writes dirty pages back on its own schedule.
package pmap
