/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultPort             = 5222
	defaultDialTimeout      = 15 * time.Second
	defaultKeepAlive        = 120 * time.Second
	defaultMaxStanzaSize    = 32768
	defaultResponseTimeout  = 30 * time.Second
	defaultSessionTimeout   = 45 * time.Second
	defaultKeepAliveWait    = 300 * time.Second
	defaultReconnectFloor   = time.Second
	defaultReconnectCeiling = 600 * time.Second
	defaultSecureRetryMax   = 10
	defaultSecureRetryDelay = 500 * time.Millisecond
)

// STARTTLSPolicy represents a stream STARTTLS requirement mode.
type STARTTLSPolicy int

const (
	// STARTTLSOpportunistic upgrades the stream whenever the peer offers it.
	STARTTLSOpportunistic STARTTLSPolicy = iota

	// STARTTLSRequired aborts the connection if the peer does not offer STARTTLS.
	STARTTLSRequired

	// STARTTLSDisabled never upgrades the stream, even if the peer offers it.
	STARTTLSDisabled
)

// UnmarshalYAML satisfies Unmarshaler interface.
func (p *STARTTLSPolicy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	switch str {
	case "", "opportunistic":
		*p = STARTTLSOpportunistic
	case "require", "required":
		*p = STARTTLSRequired
	case "disabled":
		*p = STARTTLSDisabled
	default:
		return fmt.Errorf("stream.STARTTLSPolicy: unrecognized policy: %s", str)
	}
	return nil
}

// ReconnectConfig represents stream reconnection configuration.
type ReconnectConfig struct {
	Enabled     bool
	MaxAttempts int
	MaxDelay    time.Duration
}

type reconnectProxyType struct {
	Enabled     bool `yaml:"enabled"`
	MaxAttempts int  `yaml:"max_attempts"`
	MaxDelay    int  `yaml:"max_delay"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *ReconnectConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := reconnectProxyType{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	c.Enabled = p.Enabled
	c.MaxAttempts = p.MaxAttempts
	c.MaxDelay = time.Duration(p.MaxDelay) * time.Second
	if c.MaxDelay == 0 {
		c.MaxDelay = defaultReconnectCeiling
	}
	return nil
}

// KeepAliveConfig represents whitespace keepalive configuration.
type KeepAliveConfig struct {
	Enabled  bool
	Interval time.Duration
}

type keepAliveProxyType struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *KeepAliveConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := keepAliveProxyType{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	c.Enabled = p.Enabled
	c.Interval = time.Duration(p.Interval) * time.Second
	if c.Interval == 0 {
		c.Interval = defaultKeepAliveWait
	}
	return nil
}

// ProxyConfig represents a SOCKS5 proxy configuration.
type ProxyConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config represents an XMPP stream configuration.
type Config struct {
	Domain          string
	Host            string
	Port            int
	UseTLS          bool
	STARTTLS        STARTTLSPolicy
	TLS             *tls.Config
	Namespace       string
	Lang            string
	DNSService      string
	PreferIPv6      bool
	DialTimeout     time.Duration
	KeepAlive       time.Duration
	MaxStanzaSize   int
	ResponseTimeout time.Duration
	SessionTimeout  time.Duration
	Reconnect       ReconnectConfig
	KeepAliveSend   KeepAliveConfig
	Proxy           *ProxyConfig

	SecureRetryMax   int
	SecureRetryDelay time.Duration

	// Resolver resolves connection address candidates. A nil value
	// installs the default SRV record resolver.
	Resolver Resolver

	// CertVerifier computes the TTL used to schedule a certificate
	// expiry triggered restart. A nil value installs the default
	// verifier, which derives TTL from the certificate's own bounds.
	CertVerifier CertVerifier
}

type configProxyType struct {
	Domain          string          `yaml:"domain"`
	Host            string          `yaml:"host"`
	Port            int             `yaml:"port"`
	UseTLS          bool            `yaml:"use_tls"`
	STARTTLS        STARTTLSPolicy  `yaml:"starttls"`
	CAFile          string          `yaml:"ca_file"`
	SkipVerify      bool            `yaml:"skip_verify"`
	Namespace       string          `yaml:"namespace"`
	Lang            string          `yaml:"lang"`
	DNSService      string          `yaml:"dns_service"`
	PreferIPv6      bool            `yaml:"prefer_ipv6"`
	DialTimeout     int             `yaml:"dial_timeout"`
	KeepAlive       int             `yaml:"keep_alive"`
	MaxStanzaSize   int             `yaml:"max_stanza_size"`
	ResponseTimeout int             `yaml:"response_timeout"`
	SessionTimeout  int             `yaml:"session_timeout"`
	Reconnect       ReconnectConfig `yaml:"reconnect"`
	KeepAliveSend   KeepAliveConfig `yaml:"whitespace_keepalive"`
	Proxy           *ProxyConfig    `yaml:"proxy"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (cfg *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxyType{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	if len(p.Domain) == 0 {
		return errors.New("stream.Config: domain value must be set")
	}
	cfg.Domain = p.Domain
	cfg.Host = p.Host
	cfg.Port = p.Port
	cfg.UseTLS = p.UseTLS
	cfg.STARTTLS = p.STARTTLS
	cfg.Namespace = p.Namespace
	cfg.Lang = p.Lang
	cfg.DNSService = p.DNSService
	cfg.PreferIPv6 = p.PreferIPv6
	cfg.DialTimeout = time.Duration(p.DialTimeout) * time.Second
	cfg.KeepAlive = time.Duration(p.KeepAlive) * time.Second
	cfg.MaxStanzaSize = p.MaxStanzaSize
	cfg.ResponseTimeout = time.Duration(p.ResponseTimeout) * time.Second
	cfg.SessionTimeout = time.Duration(p.SessionTimeout) * time.Second
	cfg.Reconnect = p.Reconnect
	cfg.KeepAliveSend = p.KeepAliveSend
	cfg.Proxy = p.Proxy

	if len(p.CAFile) > 0 || p.SkipVerify {
		tlsCfg := &tls.Config{ServerName: p.Domain, InsecureSkipVerify: p.SkipVerify}
		if len(p.CAFile) > 0 {
			pem, err := ioutil.ReadFile(p.CAFile)
			if err != nil {
				return errors.Wrap(err, "stream.Config: failed reading CA file")
			}
			roots := x509.NewCertPool()
			if !roots.AppendCertsFromPEM(pem) {
				return errors.New("stream.Config: failed parsing CA file")
			}
			tlsCfg.RootCAs = roots
		}
		cfg.TLS = tlsCfg
	}
	cfg.applyDefaults()
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.MaxStanzaSize == 0 {
		cfg.MaxStanzaSize = defaultMaxStanzaSize
	}
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = defaultResponseTimeout
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = defaultSessionTimeout
	}
	if cfg.Reconnect.MaxDelay == 0 {
		cfg.Reconnect.MaxDelay = defaultReconnectCeiling
	}
	if cfg.KeepAliveSend.Interval == 0 {
		cfg.KeepAliveSend.Interval = defaultKeepAliveWait
	}
	if cfg.SecureRetryMax == 0 {
		cfg.SecureRetryMax = defaultSecureRetryMax
	}
	if cfg.SecureRetryDelay == 0 {
		cfg.SecureRetryDelay = defaultSecureRetryDelay
	}
	if cfg.TLS == nil {
		cfg.TLS = &tls.Config{ServerName: cfg.Domain}
	}
}
