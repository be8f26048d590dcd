/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package session

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fennec-im/fennec/log"
	"github.com/fennec-im/fennec/streamerror"
	"github.com/fennec-im/fennec/transport"
	"github.com/fennec-im/fennec/xmpp"
	"github.com/pborman/uuid"
	"golang.org/x/text/language"
)

const (
	jabberClientNamespace = "jabber:client"
	framedStreamNamespace = "urn:ietf:params:xml:ns:xmpp-framing"
	streamNamespace       = "http://etherx.jabber.org/streams"
)

// Config structure is used to configure an XMPP session.
type Config struct {
	// Transport provides the underlying session transport
	// that will be used to send and receive elements.
	Transport transport.Transport

	// Factory builds typed root elements out of parsed stanzas.
	Factory *xmpp.Factory

	// MaxStanzaSize defines the maximum stanza size that
	// can be read from the session transport.
	MaxStanzaSize int

	// RemoteDomain represents the remote receiving entity domain name.
	RemoteDomain string

	// Namespace defines the default namespace of the stream content.
	Namespace string

	// Lang defines the stream default language.
	Lang string
}

// Session represents an initiating entity XMPP session.
type Session struct {
	id            string
	tr            transport.Transport
	pr            *xmpp.Parser
	factory       *xmpp.Factory
	remoteDomain  string
	namespace     string
	lang          string
	maxStanzaSize int
	opened        uint32
	started       uint32

	mu       sync.RWMutex
	streamID string
	peerLang string
}

// New creates a new session instance.
func New(id string, config *Config) *Session {
	var parsingMode xmpp.ParsingMode
	switch config.Transport.Type() {
	case transport.Socket:
		parsingMode = xmpp.SocketStream
	default:
		parsingMode = xmpp.DefaultMode
	}
	ns := config.Namespace
	if len(ns) == 0 {
		ns = jabberClientNamespace
	}
	return &Session{
		id:            id,
		tr:            config.Transport,
		pr:            xmpp.NewParser(config.Transport, parsingMode, config.MaxStanzaSize),
		factory:       config.Factory,
		remoteDomain:  config.RemoteDomain,
		namespace:     ns,
		lang:          config.Lang,
		maxStanzaSize: config.MaxStanzaSize,
	}
}

// StreamID returns the stream identifier assigned by the peer.
func (s *Session) StreamID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamID
}

// PeerLanguage returns the peer's negotiated default language.
func (s *Session) PeerLanguage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerLang
}

// Started returns whether or not the peer stream header has been received.
func (s *Session) Started() bool {
	return atomic.LoadUint32(&s.started) == 1
}

// Open initializes the session by sending the proper XMPP payload.
// Stream header traffic is written immediately, bypassing any send queue.
func (s *Session) Open() error {
	if !atomic.CompareAndSwapUint32(&s.opened, 0, 1) {
		return fmt.Errorf("session: already opened")
	}
	var ops *xmpp.Element
	var includeClosing bool

	buf := &strings.Builder{}
	switch s.tr.Type() {
	case transport.Socket:
		ops = xmpp.NewElementName("stream:stream")
		ops.SetAttribute("xmlns", s.namespace)
		ops.SetAttribute("xmlns:stream", streamNamespace)
		buf.WriteString(`<?xml version="1.0"?>`)

	case transport.WebSocket:
		ops = xmpp.NewElementName("open")
		ops.SetAttribute("xmlns", framedStreamNamespace)
		includeClosing = true

	default:
		return nil
	}
	ops.SetAttribute("to", s.remoteDomain)
	ops.SetAttribute("version", "1.0")
	if len(s.lang) > 0 {
		ops.SetLanguage(s.lang)
	}
	ops.ToXML(buf, includeClosing)

	openStr := buf.String()
	log.Debugf("SEND(%s): %s", s.id, openStr)

	if _, err := s.tr.WriteString(openStr); err != nil {
		return &streamerror.TransportError{Op: "write", Err: err}
	}
	return s.tr.Flush()
}

// Close closes session sending the proper XMPP payload.
// It's responsibility of the caller to close the underlying transport.
func (s *Session) Close() error {
	if atomic.LoadUint32(&s.opened) == 0 {
		return fmt.Errorf("session: already closed")
	}
	switch s.tr.Type() {
	case transport.Socket:
		_, _ = s.tr.WriteString("</stream:stream>")
	case transport.WebSocket:
		_, _ = s.tr.WriteString(fmt.Sprintf(`<close xmlns="%s" />`, framedStreamNamespace))
	}
	return s.tr.Flush()
}

// Send writes an XML element to the underlying session transport.
func (s *Session) Send(elem xmpp.XElement) error {
	log.Debugf("SEND(%s): %v", s.id, elem)
	elem.ToXML(s.tr, true)
	return s.tr.Flush()
}

// Receive returns next incoming session element.
//
// The first non-nil element returned is the peer's stream header; every
// element after that is a stanza boundary, already passed through the
// root type factory. A nil element with nil error means inter-stanza
// whitespace (keepalive traffic) was read.
func (s *Session) Receive() (xmpp.XElement, error) {
	elem, err := s.pr.ParseElement()
	if err != nil {
		return nil, s.mapParseError(err)
	}
	if elem == nil {
		return nil, nil
	}
	log.Debugf("RECV(%s): %v", s.id, elem)

	if atomic.LoadUint32(&s.started) == 0 {
		if err := s.validateStreamElement(elem); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.streamID = elem.ID()
		s.peerLang = canonicalLang(elem.Language())
		s.mu.Unlock()
		atomic.StoreUint32(&s.started, 1)
		return elem, nil
	}
	return s.factory.Build(elem, s.namespace, s.PeerLanguage()), nil
}

func (s *Session) validateStreamElement(elem xmpp.XElement) error {
	switch s.tr.Type() {
	case transport.Socket:
		if elem.Name() != "stream:stream" {
			return &streamerror.FramingError{Err: fmt.Errorf("unexpected stream element: %s", elem.Name())}
		}
		if elem.Attributes().Get("xmlns:stream") != streamNamespace {
			return &streamerror.FramingError{Err: fmt.Errorf("invalid stream namespace: %s", elem.Attributes().Get("xmlns:stream"))}
		}

	case transport.WebSocket:
		if elem.Name() != "open" {
			return &streamerror.FramingError{Err: fmt.Errorf("unexpected stream element: %s", elem.Name())}
		}
		if elem.Namespace() != framedStreamNamespace {
			return &streamerror.FramingError{Err: fmt.Errorf("invalid stream namespace: %s", elem.Namespace())}
		}
	}
	return nil
}

func (s *Session) mapParseError(err error) error {
	switch err {
	case xmpp.ErrStreamClosedByPeer, xmpp.ErrTooLargeStanza:
		return err
	case io.EOF, io.ErrUnexpectedEOF:
		return &streamerror.TransportError{Op: "read", Err: err}
	}
	if netErr, ok := err.(net.Error); ok {
		return &streamerror.TransportError{Op: "read", Err: netErr}
	}
	// anything else means the byte stream was structurally bad
	return &streamerror.FramingError{Err: err}
}

func canonicalLang(lang string) string {
	if len(lang) == 0 {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}

// NewSessionID generates a new unique session identifier.
func NewSessionID() string {
	return uuid.New()
}
