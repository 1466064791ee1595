// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/dgryski/go-farm"
)

const maxNameLen = 40

var errNameTooLong = fmt.Errorf("names are limited to %d bytes", maxNameLen)

// record is the value type pmapctl stores.  It is keyed by the fingerprint
// of its name, so lookups by name never scan.
type record struct {
	ID      uint64
	Value   int64
	Updated int64 // unix nanoseconds
	Name    [maxNameLen]byte
}

func recordKey(r *record) uint64 {
	return r.ID
}

func nameID(name string) uint64 {
	return farm.Fingerprint64([]byte(name))
}

func newRecord(name string, value int64, now time.Time) (record, error) {
	if name == "" {
		return record{}, errors.New("empty name")
	}
	if len(name) > maxNameLen {
		return record{}, fmt.Errorf("%q: %w", name, errNameTooLong)
	}
	r := record{
		ID:      nameID(name),
		Value:   value,
		Updated: now.UnixNano(),
	}
	copy(r.Name[:], name)
	return r, nil
}

func (r *record) name() string {
	n, _, _ := bytes.Cut(r.Name[:], []byte{0})
	return string(n)
}

func (r *record) updated() time.Time {
	return time.Unix(0, r.Updated).UTC()
}

func (r *record) String() string {
	return fmt.Sprintf("%s\t%d\t%s", r.name(), r.Value, r.updated().Format(time.RFC3339))
}
