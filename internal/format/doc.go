// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package format describes the on-disk layout of a pmap file and validates
// files against it.  The byte layout on disk is the layout in memory: a
// file is mapped and records are used in place.
//
// A file looks like:
//
//	┌───────────────────┐
//	│ header (16 bytes) │
//	├───────────────────┤
//	│ record 0          │
//	│ record 1          │
//	│ ...               │
//	│ record n-1        │
//	└───────────────────┘
//
// The header holds little-endian fixed-width fields:
//
//	 0    1    2    3    4    5    6    7
//	+----+----+----+----+----+----+----+----+
//	| DA | 1A | F1 | 1E | item size         |
//	+----+----+----+----+----+----+----+----+
//	| capacity          | occupied          |
//	+----+----+----+----+----+----+----+----+
//
// Every record is align8(8 + item size) bytes and its payload starts at
// offset 8.  The first 8 bytes depend on the layout.  Tagged records carry a
// state word (0 empty, 0xFEEDDA1A occupied) and 4 bytes of padding; Linked
// records carry previous and next slot indices:
//
//	Tagged                                  Linked
//	+-------------------+-------------------+   +-------------------+-------------------+
//	| state             | (pad)             |   | prev              | next              |
//	+-------------------+-------------------+   +-------------------+-------------------+
//	| payload ...                           |   | payload ...                           |
//
// Linked files hold two extra sentinel records ahead of the capacity user
// records, so n is capacity for Tagged and capacity+2 for Linked.  The file
// length must equal 16 + n*record size exactly.
package format
