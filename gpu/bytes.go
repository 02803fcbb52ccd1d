// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"unsafe"
)

// ToBytes returns the bytes of the given slice of elements,
// sharing its memory.
func ToBytes[E any](src []E) []byte {
	if len(src) == 0 {
		return []byte{}
	}
	var e E
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(src))), len(src)*int(unsafe.Sizeof(e)))
}

// FromBytes returns the elements in the given bytes, sharing
// its memory. Trailing bytes that do not make a whole element
// are ignored. b must be aligned for E, which holds for all
// slices made by make and for device mappings.
func FromBytes[E any](b []byte) []E {
	var e E
	n := len(b) / int(unsafe.Sizeof(e))
	if n == 0 {
		return []E{}
	}
	return unsafe.Slice((*E)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// SizeOf returns the size in bytes of element type E.
func SizeOf[E any]() int {
	var e E
	return int(unsafe.Sizeof(e))
}
