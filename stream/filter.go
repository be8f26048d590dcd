/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import "github.com/fennec-im/fennec/xmpp"

// Filter transforms a stanza as it passes through the stream.
// Returning nil drops the stanza silently.
type Filter func(elem xmpp.XElement) xmpp.XElement

// FilterMode determines the point of the pipeline a filter is applied at.
type FilterMode int

const (
	// FilterIn filters are applied to received stanzas before handler
	// matching.
	FilterIn FilterMode = iota

	// FilterOut filters are applied to outbound stanzas at enqueue time.
	FilterOut

	// FilterOutSync filters are applied to outbound stanzas at the exact
	// moment of serialization, under the send lock, so that they observe
	// a consistent send queue snapshot.
	FilterOutSync
)

// AddFilter appends a stanza filter to one of the stream pipelines.
// Filters within a pipeline run in registration order.
func (s *Stream) AddFilter(mode FilterMode, f Filter) {
	s.filtersMu.Lock()
	defer s.filtersMu.Unlock()
	switch mode {
	case FilterIn:
		s.inFilters = append(s.inFilters, f)
	case FilterOut:
		s.outFilters = append(s.outFilters, f)
	case FilterOutSync:
		s.outSyncFilters = append(s.outSyncFilters, f)
	}
}

func (s *Stream) filtersSnapshot(mode FilterMode) []Filter {
	s.filtersMu.RLock()
	defer s.filtersMu.RUnlock()
	switch mode {
	case FilterIn:
		return append([]Filter(nil), s.inFilters...)
	case FilterOut:
		return append([]Filter(nil), s.outFilters...)
	default:
		return append([]Filter(nil), s.outSyncFilters...)
	}
}

func applyFilters(filters []Filter, elem xmpp.XElement) xmpp.XElement {
	for _, f := range filters {
		if elem = f(elem); elem == nil {
			return nil
		}
	}
	return elem
}
