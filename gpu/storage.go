// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"slices"
	"sort"
)

// StorageEntry is one named storage buffer of a [StorageSet].
type StorageEntry struct {

	// Name of the entry, unique within the set.
	Name string

	// Binding is the storage binding point, unique within the set.
	Binding int

	// Type is the element type; updates must match it.
	Type Types

	// Shape is the dimensions; updates must match it.
	Shape Shape

	buffer *Buffer
}

// Buffer returns the device buffer of the entry.
func (se *StorageEntry) Buffer() *Buffer {
	return se.buffer
}

// ByteSize returns the size of the entry data in bytes.
func (se *StorageEntry) ByteSize() int {
	return se.Shape.Len() * se.Type.Bytes()
}

// StorageSet is a compute kernel together with the named storage
// buffers it reads and writes. Each name has a fixed element type
// and shape once registered.
//
// All methods must be called on the goroutine owning the device.
type StorageSet struct {

	// Name is used in errors and logging.
	Name string

	source   *ProgramSource
	device   Device
	program  ProgramHandle
	entries  map[string]*StorageEntry
	bindings map[int]*StorageEntry
	deleted  bool
}

// NewStorageSet compiles the compute kernel in src and returns
// a new empty StorageSet for it. A kernel that fails to compile
// returns an error matching [ErrCompileFailure], with the
// diagnostics in the [*CompileError].
func NewStorageSet(dev Device, src *ProgramSource) (*StorageSet, error) {
	if src == nil || !src.IsCompute() {
		return nil, fmt.Errorf("gpu.NewStorageSet: source has no compute stage: %w", ErrInvalidArgument)
	}
	if !dev.Features().Has(FeatureCompute) {
		return nil, fmt.Errorf("gpu.NewStorageSet %s: compute on %s: %w", src.Name, dev.Name(), ErrUnsupported)
	}
	p, err := dev.NewProgram(src)
	if err != nil {
		return nil, fmt.Errorf("gpu.NewStorageSet %s: %w", src.Name, err)
	}
	ss := &StorageSet{
		Name:     src.Name,
		source:   src,
		device:   dev,
		program:  p,
		entries:  make(map[string]*StorageEntry),
		bindings: make(map[int]*StorageEntry),
	}
	return ss, nil
}

// Source returns the source of the current kernel.
func (ss *StorageSet) Source() *ProgramSource {
	return ss.source
}

// Program returns the handle of the current kernel.
func (ss *StorageSet) Program() ProgramHandle {
	return ss.program
}

func (ss *StorageSet) checkDeleted(op string) error {
	if ss.deleted {
		return fmt.Errorf("gpu.StorageSet %s %s: %w", op, ss.Name, ErrAlreadyDeleted)
	}
	return nil
}

// Entry returns the entry registered under name.
func (ss *StorageSet) Entry(name string) (*StorageEntry, error) {
	se, ok := ss.entries[name]
	if !ok {
		return nil, fmt.Errorf("gpu.StorageSet %s: %q not registered: %w", ss.Name, name, ErrInvalidIndex)
	}
	return se, nil
}

// Entries returns all entries, in binding order.
func (ss *StorageSet) Entries() []*StorageEntry {
	es := make([]*StorageEntry, 0, len(ss.entries))
	for _, se := range ss.entries {
		es = append(es, se)
	}
	sort.Slice(es, func(i, j int) bool { return es[i].Binding < es[j].Binding })
	return es
}

// Register adds a new storage buffer with the given name, element
// type, shape and initial data at the given binding point.
// The name and the binding must not be in use
// ([ErrDuplicateRegistration]), and the shape must describe the data
// ([ErrInvalidShape]).
func (ss *StorageSet) Register(name string, typ Types, shape Shape, data []byte, binding int) error {
	if err := ss.checkDeleted("Register"); err != nil {
		return err
	}
	if typ.Bytes() == 0 {
		return fmt.Errorf("gpu.StorageSet Register %s: %q has undefined type %s: %w", ss.Name, name, typ, ErrInvalidArgument)
	}
	if binding < 0 {
		return fmt.Errorf("gpu.StorageSet Register %s: %q has negative binding %d: %w", ss.Name, name, binding, ErrInvalidArgument)
	}
	if _, has := ss.entries[name]; has {
		return fmt.Errorf("gpu.StorageSet Register %s: name %q: %w", ss.Name, name, ErrDuplicateRegistration)
	}
	if o, has := ss.bindings[binding]; has {
		return fmt.Errorf("gpu.StorageSet Register %s: binding %d of %q already used by %q: %w", ss.Name, binding, name, o.Name, ErrDuplicateRegistration)
	}
	if err := checkShape(typ, shape, data); err != nil {
		return fmt.Errorf("gpu.StorageSet Register %s: %q: %w", ss.Name, name, err)
	}
	bf, err := NewBuffer(ss.device, ss.Name+"."+name, StorageBuffer, typ.Bytes(), 1)
	if err != nil {
		return err
	}
	bf.Usage = DynamicCopy
	if err := bf.Write(data); err != nil {
		bf.Delete()
		return fmt.Errorf("gpu.StorageSet Register %s: %w", ss.Name, err)
	}
	se := &StorageEntry{Name: name, Binding: binding, Type: typ, Shape: slices.Clone(shape), buffer: bf}
	ss.entries[name] = se
	ss.bindings[binding] = se
	return nil
}

func checkShape(typ Types, shape Shape, data []byte) error {
	if err := shape.Valid(); err != nil {
		return fmt.Errorf("shape %s: %v: %w", shape, err, ErrInvalidShape)
	}
	if n := shape.Len() * typ.Bytes(); n != len(data) {
		return fmt.Errorf("shape %s of %s needs %d bytes, data has %d: %w", shape, typ, n, len(data), ErrInvalidShape)
	}
	return nil
}

// Update replaces the data of the named entry. The type and shape
// must be those it was registered with ([ErrShapeMismatch]).
// Unknown names return [ErrInvalidIndex].
func (ss *StorageSet) Update(name string, typ Types, shape Shape, data []byte) error {
	if err := ss.checkDeleted("Update"); err != nil {
		return err
	}
	se, err := ss.Entry(name)
	if err != nil {
		return err
	}
	if typ != se.Type || !shape.Equal(se.Shape) {
		return fmt.Errorf("gpu.StorageSet Update %s: %q registered as %s%s, got %s%s: %w", ss.Name, name, se.Type, se.Shape, typ, shape, ErrShapeMismatch)
	}
	if err := checkShape(typ, shape, data); err != nil {
		return fmt.Errorf("gpu.StorageSet Update %s: %q: %w", ss.Name, name, err)
	}
	return se.buffer.Write(data)
}

// DefaultGroups returns the work groups covering the largest
// entry, given the LocalSize of the kernel.
func (ss *StorageSet) DefaultGroups() [3]int {
	n := 1
	for _, se := range ss.entries {
		n = max(n, se.Shape.Len())
	}
	return ss.source.WorkGroups(n)
}

// Dispatch binds all entries to their binding points, runs the
// kernel over the given work groups (x, y, z; missing dimensions
// are 1, none uses [StorageSet.DefaultGroups]), and issues a
// storage barrier so that later reads see all kernel writes.
func (ss *StorageSet) Dispatch(groups ...int) error {
	if err := ss.checkDeleted("Dispatch"); err != nil {
		return err
	}
	if len(groups) > 3 {
		return fmt.Errorf("gpu.StorageSet Dispatch %s: %d group dimensions: %w", ss.Name, len(groups), ErrInvalidArgument)
	}
	gs := [3]int{1, 1, 1}
	if len(groups) == 0 {
		gs = ss.DefaultGroups()
	}
	for i, g := range groups {
		if g <= 0 {
			return fmt.Errorf("gpu.StorageSet Dispatch %s: work groups %v: %w", ss.Name, groups, ErrInvalidArgument)
		}
		gs[i] = g
	}
	for _, se := range ss.Entries() {
		if err := se.buffer.Bind(StorageBuffer, se.Binding); err != nil {
			return fmt.Errorf("gpu.StorageSet Dispatch %s: binding %q: %w", ss.Name, se.Name, err)
		}
	}
	if err := ss.device.DispatchCompute(ss.program, gs); err != nil {
		return fmt.Errorf("gpu.StorageSet Dispatch %s: %w", ss.Name, err)
	}
	ss.device.MemoryBarrier(StorageBarrier | BufferUpdateBarrier)
	Logger().Debug("gpu.StorageSet dispatched", "kernel", ss.Name, "groups", gs)
	return nil
}

// ReadInto copies the data of the named entry into dst, which must
// be exactly its size. It blocks until all prior device work has
// completed.
func (ss *StorageSet) ReadInto(name string, dst []byte) error {
	if err := ss.checkDeleted("Read"); err != nil {
		return err
	}
	se, err := ss.Entry(name)
	if err != nil {
		return err
	}
	if len(dst) != se.ByteSize() {
		return fmt.Errorf("gpu.StorageSet Read %s: %q has %d bytes, destination %d: %w", ss.Name, name, se.ByteSize(), len(dst), ErrShapeMismatch)
	}
	return se.buffer.Read(dst)
}

// Read returns a copy of the data of the named entry.
// It blocks until all prior device work has completed.
func (ss *StorageSet) Read(name string) ([]byte, error) {
	if err := ss.checkDeleted("Read"); err != nil {
		return nil, err
	}
	se, err := ss.Entry(name)
	if err != nil {
		return nil, err
	}
	b := make([]byte, se.ByteSize())
	if err := ss.ReadInto(name, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload compiles the given kernel source and uses it for later
// dispatches. If it fails to compile, the current kernel stays
// in use and the error is returned.
func (ss *StorageSet) Reload(src *ProgramSource) error {
	if err := ss.checkDeleted("Reload"); err != nil {
		return err
	}
	if src == nil || !src.IsCompute() {
		return fmt.Errorf("gpu.StorageSet Reload %s: source has no compute stage: %w", ss.Name, ErrInvalidArgument)
	}
	p, err := ss.device.NewProgram(src)
	if err != nil {
		Logger().Warn("gpu.StorageSet reload failed, keeping current kernel", "kernel", ss.Name, "err", err)
		return fmt.Errorf("gpu.StorageSet Reload %s: %w", ss.Name, err)
	}
	ss.device.DeleteProgram(ss.program)
	ss.program = p
	ss.source = src
	Logger().Info("gpu.StorageSet reloaded", "kernel", ss.Name)
	return nil
}

// Delete releases the kernel and all storage buffers.
// It can be called more than once.
func (ss *StorageSet) Delete() {
	if ss.deleted {
		return
	}
	for _, se := range ss.entries {
		se.buffer.Delete()
	}
	ss.device.DeleteProgram(ss.program)
	ss.entries = nil
	ss.bindings = nil
	ss.deleted = true
}

// RegisterStorage registers the given values, with the type tag of E,
// as [StorageSet.Register].
func RegisterStorage[E Element](ss *StorageSet, name string, shape Shape, vals []E, binding int) error {
	return ss.Register(name, TypeOf[E](), shape, ToBytes(vals), binding)
}

// UpdateStorage updates the named entry with the given values,
// as [StorageSet.Update].
func UpdateStorage[E Element](ss *StorageSet, name string, shape Shape, vals []E) error {
	return ss.Update(name, TypeOf[E](), shape, ToBytes(vals))
}

// ReadStorage reads the named entry as values of type E, which must
// match its registered type.
func ReadStorage[E Element](ss *StorageSet, name string) ([]E, error) {
	if err := ss.checkDeleted("Read"); err != nil {
		return nil, err
	}
	se, err := ss.Entry(name)
	if err != nil {
		return nil, err
	}
	if tp := TypeOf[E](); tp != se.Type {
		return nil, fmt.Errorf("gpu.ReadStorage %s: %q registered as %s, read as %s: %w", ss.Name, name, se.Type, tp, ErrShapeMismatch)
	}
	vals := make([]E, se.Shape.Len())
	if err := ss.ReadInto(name, ToBytes(vals)); err != nil {
		return nil, err
	}
	return vals, nil
}
