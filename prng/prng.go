// Copyright (c) 2024, The lbtlora Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.


// Package prng holds the seeded random sources of the MAC layer and the tools, so a
// run can be repeated with the same seed.
package prng

import (
	"math/rand"
	"sync"
	"time"
)

var (
	mu                   sync.Mutex
	backoffSeedGenerator *rand.Rand
	intervalGenerator    *rand.Rand
	simulationGenerator  *rand.Rand
)

func init() {
	Init(0)
}

// Init initializes the prng package, either with a fixed PRNG seed (rootSeed != 0) or a
// time based seed (rootSeed == 0).
func Init(rootSeed int64) {
	if rootSeed == 0 {
		rootSeed = time.Now().UnixNano()
	}
	root := rand.New(rand.NewSource(rootSeed))

	mu.Lock()
	defer mu.Unlock()
	backoffSeedGenerator = rand.New(rand.NewSource(root.Int63()))
	intervalGenerator = rand.New(rand.NewSource(root.Int63()))
	simulationGenerator = rand.New(rand.NewSource(root.Int63()))
}

// NewBackoffSource returns a generator for one sender's backoff draws. The result is
// not safe for concurrent use.
func NewBackoffSource() *rand.Rand {
	mu.Lock()
	defer mu.Unlock()
	return rand.New(rand.NewSource(backoffSeedGenerator.Int63()))
}

// Uniform draws from [lo, hi).
func Uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// NewSendInterval draws the pause before a node's next periodic report, uniformly
// from [min, max).
func NewSendInterval(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	mu.Lock()
	defer mu.Unlock()
	return min + time.Duration(intervalGenerator.Int63n(int64(max-min)))
}

// NewUnitRandom generates a new random unit [0, 1) float, used by the simulated radio
// link as a probability.
func NewUnitRandom() float64 {
	mu.Lock()
	defer mu.Unlock()
	return simulationGenerator.Float64()
}
