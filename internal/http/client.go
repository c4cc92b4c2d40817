// Package http builds the HTTP clients used by remote page sources.
package http

import (
	"crypto/tls"
	"net"
	nethttp "net/http"
	"strings"

	"golang.org/x/net/http2"

	"github.com/tagview/tagview/internal/config"
	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/logging"
)

// NewClient creates an HTTP client for page requests with proxy support.
//
// The client has no overall timeout; callers bound each request with a context.
// HTTP/2 is attempted unless disabled or a proxy is in use, since proxies often
// break multiplexed streams.
func NewClient(cfg config.RemoteConfig, logger *logging.Logger) (*nethttp.Client, error) {
	logger = logging.OrNop(logger)

	tr := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.RemoteDialTimeout,
			KeepAlive: constants.RemoteKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        constants.RemoteMaxConnsPerHost * 2,
		MaxIdleConnsPerHost: constants.RemoteMaxConnsPerHost,
		MaxConnsPerHost:     constants.RemoteMaxConnsPerHost,
		IdleConnTimeout:     constants.RemoteIdleConnTimeout,
		TLSHandshakeTimeout: constants.RemoteTLSHandshakeTimeout,
	}

	proxy, err := ProxyFunc(cfg, logger)
	if err != nil {
		return nil, err
	}
	tr.Proxy = proxy

	if cfg.DisableHTTP2 || proxyActive(cfg) {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	} else {
		tr.ForceAttemptHTTP2 = true
		if err := http2.ConfigureTransport(tr); err != nil {
			logger.Debug().Err(err).Msg("http2 not configured")
		}
	}

	if strings.EqualFold(cfg.ProxyMode, "ntlm") {
		return &nethttp.Client{Transport: newNTLMTransport(cfg, tr)}, nil
	}
	return &nethttp.Client{Transport: tr}, nil
}
