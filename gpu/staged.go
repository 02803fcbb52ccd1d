// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "sync/atomic"

// Staged is a single-slot staging cell that hands a value from
// producer goroutines to the goroutine owning the device.
// Stage never blocks and overwrites any value not yet drained,
// so the owner always applies the most recent one.
// The zero value is an empty cell.
type Staged[T any] struct {
	ptr atomic.Pointer[T]
}

// Stage stores v as the pending value, replacing any pending value.
// It can be called from any goroutine.
func (st *Staged[T]) Stage(v T) {
	st.ptr.Store(&v)
}

// Drain takes the pending value and clears the cell.
// ok is false if nothing was staged since the last Drain.
func (st *Staged[T]) Drain() (v T, ok bool) {
	p := st.ptr.Swap(nil)
	if p == nil {
		return v, false
	}
	return *p, true
}

// Restore puts back a drained value that could not be applied,
// unless a newer value has been staged since.
func (st *Staged[T]) Restore(v T) {
	st.ptr.CompareAndSwap(nil, &v)
}

// Pending returns whether a value is waiting to be drained.
func (st *Staged[T]) Pending() bool {
	return st.ptr.Load() != nil
}

// Discard clears any pending value.
func (st *Staged[T]) Discard() {
	st.ptr.Store(nil)
}
