/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package transport

import (
	"bytes"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/fennec-im/fennec/xmpp"
	"github.com/stretchr/testify/require"
)

type fakeSocketConn struct {
	r      *bytes.Buffer
	w      *bytes.Buffer
	closed bool
}

func newFakeSocketConn() *fakeSocketConn {
	return &fakeSocketConn{
		r: new(bytes.Buffer),
		w: new(bytes.Buffer),
	}
}

func (c *fakeSocketConn) Read(b []byte) (n int, err error)   { return c.r.Read(b) }
func (c *fakeSocketConn) Write(b []byte) (n int, err error)  { return c.w.Write(b) }
func (c *fakeSocketConn) Close() error                       { c.closed = true; return nil }
func (c *fakeSocketConn) LocalAddr() net.Addr                { return localAddr }
func (c *fakeSocketConn) RemoteAddr() net.Addr               { return remoteAddr }
func (c *fakeSocketConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeSocketConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeSocketConn) SetWriteDeadline(t time.Time) error { return nil }

type fakeAddr int

var (
	localAddr  = fakeAddr(1)
	remoteAddr = fakeAddr(2)
)

func (a fakeAddr) Network() string { return "net" }
func (a fakeAddr) String() string  { return "str" }

func TestSocket(t *testing.T) {
	buff := make([]byte, 4096)
	conn := newFakeSocketConn()
	st := NewSocketTransport(conn, 4096)
	st2 := st.(*socketTransport)

	el1 := xmpp.NewElementNamespace("elem", "im.fennec:ns")
	el1.ToXML(st, true)
	require.Nil(t, st.Flush())
	require.Equal(t, 0, bytes.Compare([]byte(el1.String()), conn.w.Bytes()))

	el2 := xmpp.NewElementNamespace("elem2", "im.fennec:ns2")
	el2.ToXML(conn.r, true)
	n, err := st.Read(buff)
	require.Nil(t, err)
	require.Equal(t, el2.String(), string(buff[:n]))

	require.Equal(t, Socket, st.Type())

	st.StartTLS(&tls.Config{}, true)
	_, ok := st2.conn.(*tls.Conn)
	require.True(t, ok)

	st.Close()
	require.True(t, conn.closed)
}

func TestSocket_PeerCertificates(t *testing.T) {
	conn := newFakeSocketConn()
	st := NewSocketTransport(conn, 4096)
	require.Nil(t, st.PeerCertificates())

	st.StartTLS(&tls.Config{}, true)
	// handshake never happened, so no certificate chain is available
	require.Nil(t, st.PeerCertificates())
}

func TestSocket_WriteString(t *testing.T) {
	conn := newFakeSocketConn()
	st := NewSocketTransport(conn, 4096)
	n, err := st.WriteString(" ")
	require.Nil(t, err)
	require.Equal(t, 1, n)
	require.Nil(t, st.Flush())
	require.Equal(t, " ", conn.w.String())
}
