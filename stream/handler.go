/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import (
	"sync/atomic"

	"github.com/fennec-im/fennec/xmpp"
)

// Matcher is a predicate over a stanza used to decide whether a handler
// should fire.
type Matcher func(elem xmpp.XElement) bool

// MatchName returns a matcher accepting stanzas with a given name.
func MatchName(name string) Matcher {
	return func(elem xmpp.XElement) bool {
		return elem.Name() == name
	}
}

// MatchNamespaceName returns a matcher accepting stanzas with a given
// qualified name.
func MatchNamespaceName(namespace, name string) Matcher {
	return func(elem xmpp.XElement) bool {
		return elem.Name() == name && elem.Namespace() == namespace
	}
}

// Handler couples a matcher predicate with a callback to be executed
// when a matching stanza is received.
//
// A handler holds a non-owning back reference to the stream it's bound
// to: a registered handler never keeps the stream alive.
type Handler struct {
	// Name uniquely identifies the handler within a stream.
	Name string

	// Match decides whether the handler fires for a given stanza.
	Match Matcher

	// Handle processes a matched stanza.
	Handle func(elem xmpp.XElement)

	// Once indicates if the handler should be discarded after its
	// first match.
	Once bool

	// InStream indicates if the handler should execute synchronously
	// during stream processing, before the regular dispatch queue is
	// touched. Reserved for protocol critical, ordering sensitive
	// reactions such as stream restarts.
	InStream bool

	stream *Stream
	fired  uint32
}

func (h *Handler) markFired() bool {
	return atomic.CompareAndSwapUint32(&h.fired, 0, 1)
}

// RegisterHandler attaches a stanza handler to the stream.
// Handlers already bound to a stream are rejected.
func (s *Stream) RegisterHandler(h *Handler) error {
	if h.stream != nil {
		return errAlreadyRegistered
	}
	if len(h.Name) == 0 {
		h.Name = "handler_" + s.NewID()
	}
	s.handlersMu.Lock()
	h.stream = s
	s.handlers = append(s.handlers, h)
	s.handlersMu.Unlock()
	return nil
}

// RemoveHandler removes the first handler registered under a given name,
// returning false if no handler was found.
func (s *Stream) RemoveHandler(name string) bool {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	for i, h := range s.handlers {
		if h.Name == name {
			h.stream = nil
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Stream) removeHandler(h *Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	for i, rh := range s.handlers {
		if rh == h {
			rh.stream = nil
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			return
		}
	}
}

func (s *Stream) handlersSnapshot() []*Handler {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return append([]*Handler(nil), s.handlers...)
}
