// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pmap

import (
	"fmt"
	"reflect"
)

// maxAlign is the alignment every payload is guaranteed: mappings are page
// aligned and headers and records are multiples of 8 bytes.
const maxAlign = 8

// itemSizeOf returns the payload size for V, or an error if V can't live in
// mapped memory across processes.
func itemSizeOf[V any]() (uint32, error) {
	t := reflect.TypeFor[V]()
	if err := checkPlain(t, t.String()); err != nil {
		return 0, err
	}
	if t.Size() == 0 {
		return 0, fmt.Errorf("%s has zero size: %w", t, ErrUnsupportedValue)
	}
	if t.Align() > maxAlign {
		return 0, fmt.Errorf("%s needs %d-byte alignment: %w", t, t.Align(), ErrUnsupportedValue)
	}
	if uint64(t.Size()) > uint64(^uint32(0)) {
		return 0, fmt.Errorf("%s is %d bytes: %w", t, t.Size(), ErrTooLarge)
	}
	return uint32(t.Size()), nil
}

// checkPlain reports an error if t holds anything other than fixed-size
// numbers: no pointers, nothing whose meaning depends on the process that
// wrote it.
func checkPlain(t reflect.Type, path string) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkPlain(t.Elem(), path+"[]")
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if err := checkPlain(f.Type, path+"."+f.Name); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%s is a %s: %w", path, t.Kind(), ErrUnsupportedValue)
	}
}
