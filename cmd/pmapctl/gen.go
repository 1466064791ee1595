// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"math/rand"
)

const (
	prefix    = "pref_"
	suffixLen = 16
	hmacKey   = "d259c7f656caf7f1"
)

func newRand() *rand.Rand {
	var seedBytes [8]byte
	_, _ = crand.Read(seedBytes[:])
	seed := int64(binary.LittleEndian.Uint64(seedBytes[:]))
	return rand.New(rand.NewSource(seed))
}

// generator produces random names with values derived from them, for
// filling a store with test data.
type generator struct {
	rng *rand.Rand
	h   hash.Hash
}

func newGenerator(rng *rand.Rand) *generator {
	return &generator{
		rng: rng,
		h:   hmac.New(sha256.New, []byte(hmacKey)),
	}
}

// next returns a random name and a value in [0, 65536) that depends only
// on the name.
func (g *generator) next() (string, int64) {
	var buf [suffixLen / 2]byte
	if _, err := g.rng.Read(buf[:]); err != nil {
		panic(err)
	}
	name := fmt.Sprintf("%s%x", prefix, buf)
	g.h.Reset()
	g.h.Write([]byte(name))
	sum := g.h.Sum(nil)
	return name, int64(binary.LittleEndian.Uint16(sum))
}
