// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pmap

import (
	"errors"
	"fmt"

	"github.com/bpowers/pmap/internal/format"
	"github.com/bpowers/pmap/internal/region"
)

// OSError describes a failed system call against the backing file.  Code
// returns the platform error number.
type OSError = region.OSError

// Format errors.  Files that fail these checks are rejected and never
// repaired.
var (
	ErrFormat           = format.ErrFormat
	ErrTooSmall         = format.ErrTooSmall
	ErrBadSignature     = format.ErrBadSignature
	ErrSizeMismatch     = format.ErrSizeMismatch
	ErrItemSizeMismatch = format.ErrItemSizeMismatch
	ErrCorrupted        = format.ErrCorrupted
	ErrTooLarge         = format.ErrTooLarge
)

// ErrLogic is wrapped by errors caused by how a Map is used rather than by
// the state of its file.
var ErrLogic = errors.New("pmap: logic error")

var (
	ErrDuplicateKey     = fmt.Errorf("%w: duplicate key", ErrLogic)
	ErrStorageFull      = fmt.Errorf("%w: storage full", ErrLogic)
	ErrClosed           = fmt.Errorf("%w: map is closed", ErrLogic)
	ErrUnsupportedValue = fmt.Errorf("%w: unsupported value type", ErrLogic)
)
