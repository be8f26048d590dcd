/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import (
	"crypto/x509"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fennec-im/fennec/log"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"golang.org/x/net/proxy"
)

// Address represents a stream connection candidate.
type Address struct {
	Host string
	Port int
}

// String returns the candidate in host:port form.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Resolver resolves the ordered list of address candidates a stream
// should attempt to connect to.
type Resolver interface {
	Resolve(domain string, port int, service string, preferIPv6 bool) ([]Address, error)
}

// srvResolver resolves candidates through DNS SRV records, falling back
// to plain host lookup when no usable record is published. SRV lookups
// go through a circuit breaker so a flapping DNS server doesn't stall
// every reconnection pass.
type srvResolver struct {
	cb        *gobreaker.CircuitBreaker
	lookupSRV func(service, proto, name string) (string, []*net.SRV, error)
	lookupIP  func(host string) ([]net.IP, error)
}

// NewResolver returns the default SRV record resolver.
func NewResolver() Resolver {
	return &srvResolver{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "dns-srv",
			Timeout: time.Minute,
		}),
		lookupSRV: net.LookupSRV,
		lookupIP:  net.LookupIP,
	}
}

func (r *srvResolver) Resolve(domain string, port int, service string, preferIPv6 bool) ([]Address, error) {
	if len(service) > 0 {
		res, err := r.cb.Execute(func() (interface{}, error) {
			_, recs, err := r.lookupSRV(service, "tcp", domain)
			return recs, err
		})
		if err != nil {
			log.Warnf("srv lookup for %s.%s failed: %v", service, domain, err)
		} else {
			recs := res.([]*net.SRV)
			// a single "." target means the service is explicitly not provided
			if !(len(recs) == 1 && recs[0].Target == ".") {
				var out []Address
				for _, rec := range recs {
					out = append(out, Address{
						Host: strings.TrimSuffix(rec.Target, "."),
						Port: int(rec.Port),
					})
				}
				if len(out) > 0 {
					return out, nil
				}
			}
		}
	}
	ips, err := r.lookupIP(domain)
	if err != nil || len(ips) == 0 {
		// let the dialer try the literal domain as a last resort
		return []Address{{Host: domain, Port: port}}, nil
	}
	var v4, v6 []Address
	for _, ip := range ips {
		if ip.To4() != nil {
			v4 = append(v4, Address{Host: ip.String(), Port: port})
		} else {
			v6 = append(v6, Address{Host: ip.String(), Port: port})
		}
	}
	if preferIPv6 {
		return append(v6, v4...), nil
	}
	return append(v4, v6...), nil
}

type dialer struct {
	cfg *Config
}

func newDialer(cfg *Config) *dialer {
	return &dialer{cfg: cfg}
}

func (d *dialer) Dial(addr Address) (net.Conn, error) {
	if p := d.cfg.Proxy; p != nil {
		var auth *proxy.Auth
		if len(p.Username) > 0 {
			auth = &proxy.Auth{User: p.Username, Password: p.Password}
		}
		fwd := &net.Dialer{Timeout: d.cfg.DialTimeout}
		sd, err := proxy.SOCKS5("tcp", p.Address, auth, fwd)
		if err != nil {
			return nil, errors.Wrap(err, "failed initializing SOCKS5 proxy dialer")
		}
		return sd.Dial("tcp", addr.String())
	}
	return net.DialTimeout("tcp", addr.String(), d.cfg.DialTimeout)
}

// CertVerifier computes the time-to-live of a peer certificate, used to
// schedule an expiry triggered stream restart.
type CertVerifier interface {
	TTL(cert *x509.Certificate) time.Duration
}

type notAfterVerifier struct{}

func (notAfterVerifier) TTL(cert *x509.Certificate) time.Duration {
	return time.Until(cert.NotAfter)
}
