// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package format

import (
	"errors"
	"fmt"
)

// ErrFormat is wrapped by every error that means "this file was not written
// by a compatible build".  Such files are never repaired.
var ErrFormat = errors.New("format error")

var (
	ErrTooSmall         = fmt.Errorf("%w: file too small", ErrFormat)
	ErrBadSignature     = fmt.Errorf("%w: bad signature", ErrFormat)
	ErrSizeMismatch     = fmt.Errorf("%w: file size doesn't match capacity", ErrFormat)
	ErrItemSizeMismatch = fmt.Errorf("%w: item size doesn't match", ErrFormat)
	ErrCorrupted        = fmt.Errorf("%w: file corrupted", ErrFormat)
)

// ErrTooLarge means the requested shape can't be represented or mapped.
var ErrTooLarge = errors.New("requested file too large")
