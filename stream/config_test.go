/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestConfig_Defaults(t *testing.T) {
	rawCfg := `
domain: example.net
`
	var cfg Config
	require.Nil(t, yaml.Unmarshal([]byte(rawCfg), &cfg))

	require.Equal(t, "example.net", cfg.Domain)
	require.Equal(t, defaultPort, cfg.Port)
	require.Equal(t, defaultDialTimeout, cfg.DialTimeout)
	require.Equal(t, defaultKeepAlive, cfg.KeepAlive)
	require.Equal(t, defaultMaxStanzaSize, cfg.MaxStanzaSize)
	require.Equal(t, defaultResponseTimeout, cfg.ResponseTimeout)
	require.Equal(t, defaultSessionTimeout, cfg.SessionTimeout)
	require.Equal(t, defaultReconnectCeiling, cfg.Reconnect.MaxDelay)
	require.Equal(t, defaultSecureRetryMax, cfg.SecureRetryMax)
	require.Equal(t, defaultSecureRetryDelay, cfg.SecureRetryDelay)
	require.Equal(t, STARTTLSOpportunistic, cfg.STARTTLS)
	require.NotNil(t, cfg.TLS)
	require.Equal(t, "example.net", cfg.TLS.ServerName)
}

func TestConfig_MissingDomain(t *testing.T) {
	rawCfg := `
port: 5223
`
	var cfg Config
	require.NotNil(t, yaml.Unmarshal([]byte(rawCfg), &cfg))
}

func TestConfig_Values(t *testing.T) {
	rawCfg := `
domain: example.net
host: xmpp.example.net
port: 5223
use_tls: true
starttls: required
skip_verify: true
dns_service: xmpp-client
prefer_ipv6: true
session_timeout: 10
reconnect:
  enabled: true
  max_attempts: 5
  max_delay: 120
whitespace_keepalive:
  enabled: true
  interval: 60
proxy:
  address: 127.0.0.1:1080
  username: u
  password: p
`
	var cfg Config
	require.Nil(t, yaml.Unmarshal([]byte(rawCfg), &cfg))

	require.Equal(t, "xmpp.example.net", cfg.Host)
	require.Equal(t, 5223, cfg.Port)
	require.True(t, cfg.UseTLS)
	require.Equal(t, STARTTLSRequired, cfg.STARTTLS)
	require.True(t, cfg.TLS.InsecureSkipVerify)
	require.Equal(t, "xmpp-client", cfg.DNSService)
	require.True(t, cfg.PreferIPv6)
	require.Equal(t, 10*time.Second, cfg.SessionTimeout)
	require.True(t, cfg.Reconnect.Enabled)
	require.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	require.Equal(t, 2*time.Minute, cfg.Reconnect.MaxDelay)
	require.True(t, cfg.KeepAliveSend.Enabled)
	require.Equal(t, time.Minute, cfg.KeepAliveSend.Interval)
	require.NotNil(t, cfg.Proxy)
	require.Equal(t, "127.0.0.1:1080", cfg.Proxy.Address)
}

func TestConfig_BadSTARTTLSPolicy(t *testing.T) {
	rawCfg := `
domain: example.net
starttls: maybe
`
	var cfg Config
	require.NotNil(t, yaml.Unmarshal([]byte(rawCfg), &cfg))
}
