/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package transport

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeWebSocketConn struct {
	r      *bytes.Buffer
	w      *bytes.Buffer
	conn   net.Conn
	closed bool
}

func newFakeWebSocketConn() *fakeWebSocketConn {
	return &fakeWebSocketConn{
		r:    new(bytes.Buffer),
		w:    new(bytes.Buffer),
		conn: newFakeSocketConn(),
	}
}

func (c *fakeWebSocketConn) NextReader() (int, io.Reader, error) { return 0, c.r, nil }

func (c *fakeWebSocketConn) NextWriter(_ int) (io.WriteCloser, error) {
	return nopWriteCloser{c.w}, nil
}

func (c *fakeWebSocketConn) Close() error                        { c.closed = true; return nil }
func (c *fakeWebSocketConn) UnderlyingConn() net.Conn            { return c.conn }
func (c *fakeWebSocketConn) SetReadDeadline(t time.Time) error   { return nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func TestWebSocket(t *testing.T) {
	buff := make([]byte, 4096)
	conn := newFakeWebSocketConn()
	wst := NewWebSocketTransport(conn, 120)

	wst.WriteString(`<open xmlns="urn:ietf:params:xml:ns:xmpp-framing"/>`)
	require.Equal(t, `<open xmlns="urn:ietf:params:xml:ns:xmpp-framing"/>`, conn.w.String())

	conn.r.WriteString(`<close xmlns="urn:ietf:params:xml:ns:xmpp-framing"/>`)
	n, err := wst.Read(buff)
	require.Nil(t, err)
	require.Equal(t, `<close xmlns="urn:ietf:params:xml:ns:xmpp-framing"/>`, string(buff[:n]))

	require.Equal(t, WebSocket, wst.Type())
	require.Nil(t, wst.Flush())
	require.Nil(t, wst.PeerCertificates())

	wst.Close()
	require.True(t, conn.closed)
}
