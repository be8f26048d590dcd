/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"sync"
)

// RootType describes a registered root element type, that is an element
// that may appear as a direct child of the stream's root element.
//
// New builds the typed element from its generic parsed form.
type RootType struct {
	Namespace string
	Name      string
	New       func(elem XElement) XElement
}

// Factory maps parsed root elements to typed elements using an ordered
// registry of known root types. Elements whose qualified name matches no
// registered type are passed through generically.
type Factory struct {
	mu    sync.RWMutex
	types []RootType
}

// NewFactory returns an initialized root element factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Register appends a root type to the registry. First match wins, so callers
// must avoid overlapping qualified names across registered types.
func (f *Factory) Register(rt RootType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, rt)
}

// Remove removes the first root type registered under a qualified name.
func (f *Factory) Remove(namespace, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rt := range f.types {
		if rt.Namespace == namespace && rt.Name == name {
			f.types = append(f.types[:i], f.types[i+1:]...)
			return
		}
	}
}

// Build returns the typed form of a parsed root element.
//
// The element's own namespace is considered first, falling back to the
// stream's default namespace. When the element carries no language the
// peer's negotiated default language is applied.
func (f *Factory) Build(elem XElement, defaultNamespace, peerLang string) XElement {
	ns := elem.Namespace()
	if len(ns) == 0 {
		ns = defaultNamespace
	}
	built := f.buildTyped(elem, ns)
	if len(built.Language()) == 0 && len(peerLang) > 0 {
		if m, ok := built.(interface{ SetLanguage(string) }); ok {
			m.SetLanguage(peerLang)
		}
	}
	return built
}

func (f *Factory) buildTyped(elem XElement, ns string) XElement {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, rt := range f.types {
		if rt.Namespace == ns && rt.Name == elem.Name() {
			return rt.New(elem)
		}
	}
	return NewElementFromElement(elem)
}
