/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/fennec-im/fennec/xmpp"
	"github.com/stretchr/testify/require"
)

func TestDocParse(t *testing.T) {
	docSrc := `<a xmlns="im.fennec">Hi!</a>\n`
	p := xmpp.NewParser(strings.NewReader(docSrc), xmpp.DefaultMode, 0)
	a, err := p.ParseElement()
	require.Nil(t, err)
	require.NotNil(t, a)
	require.Equal(t, "a", a.Name())
	require.Equal(t, "im.fennec", a.Attributes().Get("xmlns"))
	require.Equal(t, "Hi!", a.Text())
}

func TestParser_EmptyDocParse(t *testing.T) {
	p := xmpp.NewParser(new(bytes.Buffer), xmpp.DefaultMode, 0)
	_, err := p.ParseElement()
	require.NotNil(t, err)
}

func TestParser_FailedDocParse(t *testing.T) {
	docSrc := `<a><b><c a="attr1">HI</c><b></a>\n`
	p := xmpp.NewParser(strings.NewReader(docSrc), xmpp.DefaultMode, 0)
	_, err := p.ParseElement()
	require.NotNil(t, err)

	docSrc2 := `<element a="attr1">\n`
	p = xmpp.NewParser(strings.NewReader(docSrc2), xmpp.DefaultMode, 0)
	element, err := p.ParseElement()
	require.Equal(t, io.EOF, err)
	require.Nil(t, element)

	docSrc3 := `</auth>\n`
	p = xmpp.NewParser(strings.NewReader(docSrc3), xmpp.DefaultMode, 0)
	element, err = p.ParseElement()
	require.NotNil(t, err)
	require.Nil(t, element)
}

func TestParser_SocketStreamOpen(t *testing.T) {
	docSrc := `<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="s-1" version="1.0">`
	p := xmpp.NewParser(strings.NewReader(docSrc), xmpp.SocketStream, 0)

	elem, err := p.ParseElement()
	require.Nil(t, err)
	require.Nil(t, elem) // proc inst

	elem, err = p.ParseElement()
	require.Nil(t, err)
	require.NotNil(t, elem)
	require.Equal(t, "stream:stream", elem.Name())
	require.Equal(t, "s-1", elem.ID())
	require.Equal(t, 0, elem.Elements().Count())
}

func TestParser_SocketStreamStanzas(t *testing.T) {
	docSrc := `<stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams"><iq id="iq-1" type="get"><ping xmlns="urn:xmpp:ping"/></iq><message to="romeo@example.net"><body>Hi!</body></message></stream:stream>`
	p := xmpp.NewParser(strings.NewReader(docSrc), xmpp.SocketStream, 0)

	elem, err := p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "stream:stream", elem.Name())

	elem, err = p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "iq", elem.Name())
	require.NotNil(t, elem.Elements().ChildNamespace("ping", "urn:xmpp:ping"))

	elem, err = p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "message", elem.Name())
	require.Equal(t, "Hi!", elem.Elements().Child("body").Text())

	elem, err = p.ParseElement()
	require.Equal(t, xmpp.ErrStreamClosedByPeer, err)
	require.Nil(t, elem)
}

func TestParser_SocketStreamMismatchedClose(t *testing.T) {
	docSrc := `<stream:stream xmlns:stream="http://etherx.jabber.org/streams"></other:stream>`
	p := xmpp.NewParser(strings.NewReader(docSrc), xmpp.SocketStream, 0)

	_, err := p.ParseElement()
	require.Nil(t, err)

	_, err = p.ParseElement()
	require.NotNil(t, err)
	require.NotEqual(t, xmpp.ErrStreamClosedByPeer, err)
}

// Stanza boundaries must not depend on how the byte stream is chunked
// by the underlying reader.
func TestParser_Rechunking(t *testing.T) {
	docSrc := `<stream:stream xmlns:stream="http://etherx.jabber.org/streams"><iq id="iq-1"><query xmlns="jabber:iq:roster"><item jid="a@b"/></query></iq>`

	p1 := xmpp.NewParser(strings.NewReader(docSrc), xmpp.SocketStream, 0)
	p2 := xmpp.NewParser(iotest.OneByteReader(strings.NewReader(docSrc)), xmpp.SocketStream, 0)

	for i := 0; i < 2; i++ {
		el1, err1 := p1.ParseElement()
		el2, err2 := p2.ParseElement()
		require.Nil(t, err1)
		require.Nil(t, err2)
		require.Equal(t, el1.String(), el2.String())
	}
}

func TestParser_WhitespaceKeepAlive(t *testing.T) {
	docSrc := `<stream:stream xmlns:stream="http://etherx.jabber.org/streams"> <iq id="iq-1" type="result"/>`
	p := xmpp.NewParser(strings.NewReader(docSrc), xmpp.SocketStream, 0)

	elem, err := p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "stream:stream", elem.Name())

	elem, err = p.ParseElement()
	require.Nil(t, err)
	require.Nil(t, elem) // keepalive whitespace

	elem, err = p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "iq", elem.Name())
}

func TestParser_TooLargeStanza(t *testing.T) {
	docSrc := `<stream:stream xmlns:stream="http://etherx.jabber.org/streams"><message><body>` + strings.Repeat("A", 2048) + `</body></message>`
	p := xmpp.NewParser(strings.NewReader(docSrc), xmpp.SocketStream, 1024)

	_, err := p.ParseElement()
	require.Nil(t, err)

	_, err = p.ParseElement()
	require.Equal(t, xmpp.ErrTooLargeStanza, err)
}
