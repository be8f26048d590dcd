/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestElement_Attributes(t *testing.T) {
	e := NewElementNamespace("iq", "jabber:client")
	e.SetID("iq-1")
	e.SetType("get")
	e.SetFrom("juliet@example.com")
	e.SetTo("romeo@example.net")
	e.SetLanguage("en")
	e.SetVersion("1.0")

	require.Equal(t, "iq", e.Name())
	require.Equal(t, "jabber:client", e.Namespace())
	require.Equal(t, "iq-1", e.ID())
	require.Equal(t, "get", e.Type())
	require.Equal(t, "juliet@example.com", e.From())
	require.Equal(t, "romeo@example.net", e.To())
	require.Equal(t, "en", e.Language())
	require.Equal(t, "1.0", e.Version())

	e.RemoveAttribute("type")
	require.Equal(t, "", e.Type())
}

func TestElement_Children(t *testing.T) {
	e := NewElementName("message")
	body := NewElementName("body")
	body.SetText("Hi!")
	e.AppendElement(body)
	e.AppendElements([]XElement{NewElementNamespace("x", "jabber:x:event")})

	require.Equal(t, 2, e.Elements().Count())
	require.Equal(t, "Hi!", e.Elements().Child("body").Text())
	require.NotNil(t, e.Elements().ChildNamespace("x", "jabber:x:event"))

	e.RemoveElements("body")
	require.Nil(t, e.Elements().Child("body"))

	e.ClearElements()
	require.Equal(t, 0, e.Elements().Count())
}

func TestElement_Copy(t *testing.T) {
	e := NewElementNamespace("presence", "jabber:client")
	e.SetID("p-1")
	e.AppendElement(NewElementName("status"))

	cp := e.Copy()
	require.Equal(t, e.String(), cp.String())

	cp.(*Element).SetID("p-2")
	require.Equal(t, "p-1", e.ID())
	require.Equal(t, "p-2", cp.ID())

	cp.(*Element).Elements().Child("status").(*Element).SetText("away")
	require.Equal(t, "", e.Elements().Child("status").Text())
}

func TestElement_IsError(t *testing.T) {
	e := NewElementName("iq")
	require.False(t, e.IsError())
	e.SetType(ErrorType)
	e.AppendElement(NewElementName("error"))
	require.True(t, e.IsError())
	require.NotNil(t, e.Error())
}

func TestElement_ToXML(t *testing.T) {
	e := NewElementName("message")
	e.SetTo("romeo@example.net")
	body := NewElementName("body")
	body.SetText(`I love "you" & <him>`)
	e.AppendElement(body)

	buf := new(bytes.Buffer)
	e.ToXML(buf, true)
	require.Equal(t, `<message to="romeo@example.net"><body>I love &#34;you&#34; &amp; &lt;him&gt;</body></message>`, buf.String())

	header := NewElementName("stream:stream")
	header.SetAttribute("to", "example.net")
	buf.Reset()
	header.ToXML(buf, false)
	require.Equal(t, `<stream:stream to="example.net">`, buf.String())
}
