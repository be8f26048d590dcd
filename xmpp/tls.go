/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

// TLSNamespace is the STARTTLS negotiation namespace.
const TLSNamespace = "urn:ietf:params:xml:ns:xmpp-tls"

// Proceed represents a TLS 'proceed' negotiation element.
type Proceed struct {
	Element
}

// NewProceed creates a 'proceed' negotiation element.
func NewProceed() *Proceed {
	p := &Proceed{}
	p.name = "proceed"
	p.SetNamespace(TLSNamespace)
	return p
}

// NewProceedFromElement creates a 'proceed' element by copying a parsed element.
func NewProceedFromElement(elem XElement) *Proceed {
	p := &Proceed{}
	p.copyFrom(elem)
	return p
}

// Copy returns a deep copy of the proceed element.
func (p *Proceed) Copy() XElement {
	return NewProceedFromElement(p)
}

// StartTLS represents a TLS 'starttls' negotiation element.
type StartTLS struct {
	Element
}

// NewStartTLS creates a 'starttls' negotiation element.
func NewStartTLS() *StartTLS {
	s := &StartTLS{}
	s.name = "starttls"
	s.SetNamespace(TLSNamespace)
	return s
}

// TLSFailure represents a TLS 'failure' negotiation element.
type TLSFailure struct {
	Element
}

// NewTLSFailureFromElement creates a 'failure' element by copying a parsed element.
func NewTLSFailureFromElement(elem XElement) *TLSFailure {
	f := &TLSFailure{}
	f.copyFrom(elem)
	return f
}

// Copy returns a deep copy of the failure element.
func (f *TLSFailure) Copy() XElement {
	return NewTLSFailureFromElement(f)
}

// TLSRootTypes returns the root types involved in STARTTLS negotiation.
func TLSRootTypes() []RootType {
	return []RootType{
		{Namespace: TLSNamespace, Name: "proceed", New: func(elem XElement) XElement { return NewProceedFromElement(elem) }},
		{Namespace: TLSNamespace, Name: "failure", New: func(elem XElement) XElement { return NewTLSFailureFromElement(elem) }},
	}
}
