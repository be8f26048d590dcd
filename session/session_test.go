/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package session

import (
	"strings"
	"testing"

	"github.com/fennec-im/fennec/streamerror"
	"github.com/fennec-im/fennec/transport"
	"github.com/fennec-im/fennec/xmpp"
	"github.com/stretchr/testify/require"
)

func newTestSession() (*Session, *transport.MockConn) {
	conn := transport.NewMockConn()
	tr := transport.NewSocketTransport(conn, 0)
	s := New("test-session", &Config{
		Transport:     tr,
		Factory:       xmpp.NewFactory(),
		MaxStanzaSize: 32768,
		RemoteDomain:  "example.net",
		Lang:          "en",
	})
	return s, conn
}

func TestSession_Open(t *testing.T) {
	s, conn := newTestSession()
	require.Nil(t, s.Open())

	header := string(conn.ReadBytes())
	require.True(t, strings.HasPrefix(header, `<?xml version="1.0"?>`))
	require.True(t, strings.Contains(header, `<stream:stream`))
	require.True(t, strings.Contains(header, `to="example.net"`))
	require.True(t, strings.Contains(header, `version="1.0"`))
	require.True(t, strings.Contains(header, `xml:lang="en"`))

	// reopening the same session must fail
	require.NotNil(t, s.Open())
}

func TestSession_Send(t *testing.T) {
	s, conn := newTestSession()
	require.Nil(t, s.Open())
	_ = conn.ReadBytes()

	elem := xmpp.NewElementNamespace("starttls", "urn:ietf:params:xml:ns:xmpp-tls")
	require.Nil(t, s.Send(elem))
	require.Equal(t, `<starttls xmlns="urn:ietf:params:xml:ns:xmpp-tls"/>`, string(conn.ReadBytes()))
}

func TestNewSessionID(t *testing.T) {
	id1 := NewSessionID()
	id2 := NewSessionID()
	require.NotEmpty(t, id1)
	require.NotEqual(t, id1, id2)
}

func TestSession_ReceiveHeaderFirst(t *testing.T) {
	s, conn := newTestSession()
	require.Nil(t, s.Open())
	_ = conn.ReadBytes()

	conn.SendBytes([]byte(`<stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="sid-1" xml:lang="ES">`))
	elem, err := s.Receive()
	require.Nil(t, err)
	require.Equal(t, "stream:stream", elem.Name())
	require.True(t, s.Started())
	require.Equal(t, "sid-1", s.StreamID())
	require.Equal(t, "es", s.PeerLanguage())

	conn.SendBytes([]byte(`<iq id="iq-1" type="result"/>`))
	elem, err = s.Receive()
	require.Nil(t, err)
	require.Equal(t, "iq", elem.Name())
}

func TestSession_InvalidStreamHeader(t *testing.T) {
	s, conn := newTestSession()
	require.Nil(t, s.Open())
	_ = conn.ReadBytes()

	conn.SendBytes([]byte(`<bogus xmlns:stream="http://etherx.jabber.org/streams">`))
	_, err := s.Receive()
	_, ok := err.(*streamerror.FramingError)
	require.True(t, ok)
}

func TestSession_ReceiveMalformed(t *testing.T) {
	s, conn := newTestSession()
	require.Nil(t, s.Open())
	_ = conn.ReadBytes()

	conn.SendBytes([]byte(`<stream:stream xmlns:stream="http://etherx.jabber.org/streams">`))
	_, err := s.Receive()
	require.Nil(t, err)

	conn.SendBytes([]byte(`<iq id="iq-1"></message>`))
	_, err = s.Receive()
	_, ok := err.(*streamerror.FramingError)
	require.True(t, ok)
}

func TestSession_ClosedByPeer(t *testing.T) {
	s, conn := newTestSession()
	require.Nil(t, s.Open())
	_ = conn.ReadBytes()

	conn.SendBytes([]byte(`<stream:stream xmlns:stream="http://etherx.jabber.org/streams">`))
	_, err := s.Receive()
	require.Nil(t, err)

	conn.SendBytes([]byte(`</stream:stream>`))
	_, err = s.Receive()
	require.Equal(t, xmpp.ErrStreamClosedByPeer, err)
}

func TestSession_SendAndClose(t *testing.T) {
	s, conn := newTestSession()
	require.Nil(t, s.Open())
	_ = conn.ReadBytes()

	iq := xmpp.NewElementName("iq")
	iq.SetID("iq-1")
	require.Nil(t, s.Send(iq))
	require.Equal(t, `<iq id="iq-1"/>`, string(conn.ReadBytes()))

	require.Nil(t, s.Close())
	require.Equal(t, `</stream:stream>`, string(conn.ReadBytes()))
}

func TestSession_CloseBeforeOpen(t *testing.T) {
	s, _ := newTestSession()
	require.NotNil(t, s.Close())
}
