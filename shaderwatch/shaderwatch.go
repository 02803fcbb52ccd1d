// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shaderwatch reloads kernel sources when their files change.
// Changes are detected on a background goroutine and staged; the
// goroutine owning the device drains them and recompiles, so the
// device is never touched from the watcher.
package shaderwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"cogentcore.org/gpubuf/gpu"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
)

type entry struct {
	name   string
	file   string
	stage  gpu.ShaderStages
	src    *gpu.ProgramSource
	staged gpu.Staged[*gpu.ProgramSource]
}

// Watcher watches kernel source files.
type Watcher struct {
	mu      sync.Mutex
	byFile  map[string]*entry
	byName  map[string]*entry
	dirs    map[string]bool
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	closing sync.Once
	err     error
}

// New returns a new watcher with its event goroutine running.
// Call Close when done.
func New() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shaderwatch.New: %w", err)
	}
	w := &Watcher{
		byFile:  make(map[string]*entry),
		byName:  make(map[string]*entry),
		dirs:    make(map[string]bool),
		watcher: fw,
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Watch watches the file holding the code of the given stage of the
// kernel src, registered under name. On each change the file is read
// and a copy of src with that code replacing the shader of the same
// stage and language is staged for [Watcher.Drain].
// The directory of the file is watched, so editors that replace
// the file on save are handled.
func (w *Watcher) Watch(name string, src *gpu.ProgramSource, stage gpu.ShaderStages, filename string) error {
	fn, err := homedir.Expand(filename)
	if err != nil {
		return fmt.Errorf("shaderwatch Watch %s: %w", name, err)
	}
	fn, err = filepath.Abs(fn)
	if err != nil {
		return fmt.Errorf("shaderwatch Watch %s: %w", name, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, has := w.byName[name]; has {
		return fmt.Errorf("shaderwatch Watch %s: %w", name, gpu.ErrDuplicateRegistration)
	}
	if _, has := w.byFile[fn]; has {
		return fmt.Errorf("shaderwatch Watch %s: file %s: %w", name, fn, gpu.ErrDuplicateRegistration)
	}
	dir := filepath.Dir(fn)
	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("shaderwatch Watch %s: %w", name, err)
		}
		w.dirs[dir] = true
	}
	en := &entry{name: name, file: fn, stage: stage, src: src}
	w.byFile[fn] = en
	w.byName[name] = en
	gpu.Logger().Debug("shaderwatch watching", "kernel", name, "file", fn)
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.changed(filepath.Clean(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			gpu.Logger().Warn("shaderwatch error", "err", err)
		}
	}
}

// changed stages a new source for the entry watching file, if any.
// Files that cannot be read, such as during a rename, are skipped.
func (w *Watcher) changed(file string) {
	w.mu.Lock()
	en, ok := w.byFile[file]
	w.mu.Unlock()
	if !ok {
		return
	}
	b, err := os.ReadFile(file)
	if err != nil || len(b) == 0 {
		return
	}
	en.staged.Stage(replaceCode(en.src, en.stage, gpu.LangForFile(file), string(b)))
	gpu.Logger().Info("shaderwatch kernel changed", "kernel", en.name, "file", file)
}

// replaceCode returns a copy of src with the given code replacing the
// shader of the given stage and language, or first if there is none.
func replaceCode(src *gpu.ProgramSource, stage gpu.ShaderStages, lang gpu.ShaderLangs, code string) *gpu.ProgramSource {
	ns := *src
	ns.Shaders = slices.Clone(src.Shaders)
	ns.Varyings = slices.Clone(src.Varyings)
	sh := gpu.Shader{Stage: stage, Lang: lang, Code: code}
	i := slices.IndexFunc(ns.Shaders, func(s gpu.Shader) bool { return s.Stage == stage && s.Lang == lang })
	if i < 0 {
		ns.Shaders = slices.Insert(ns.Shaders, 0, sh)
	} else {
		ns.Shaders[i] = sh
	}
	return &ns
}

// Pending returns whether a changed source for the named kernel
// is waiting to be drained.
func (w *Watcher) Pending(name string) bool {
	w.mu.Lock()
	en, ok := w.byName[name]
	w.mu.Unlock()
	return ok && en.staged.Pending()
}

// Drain returns the most recent changed source for the named kernel,
// if any. Only the last of several changes since the previous Drain
// is returned.
func (w *Watcher) Drain(name string) (*gpu.ProgramSource, bool) {
	w.mu.Lock()
	en, ok := w.byName[name]
	w.mu.Unlock()
	if !ok {
		return nil, false
	}
	return en.staged.Drain()
}

// Apply drains the named kernel and reloads the storage set with it.
// It returns whether a new source was applied; a source that fails
// to compile is dropped and the storage set keeps its kernel.
// It must be called on the goroutine owning the device.
func (w *Watcher) Apply(name string, ss *gpu.StorageSet) (bool, error) {
	src, ok := w.Drain(name)
	if !ok {
		return false, nil
	}
	if err := ss.Reload(src); err != nil {
		return false, fmt.Errorf("shaderwatch Apply %s: %w", name, err)
	}
	return true, nil
}

// Close stops watching and waits for the event goroutine to end.
// It can be called more than once.
func (w *Watcher) Close() error {
	w.closing.Do(func() {
		close(w.done)
		w.err = w.watcher.Close()
		w.wg.Wait()
	})
	return w.err
}
