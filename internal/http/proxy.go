package http

import (
	"fmt"
	nethttp "net/http"
	"net/url"
	"os"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/tagview/tagview/internal/config"
	"github.com/tagview/tagview/internal/logging"
)

// ProxyFunc returns the transport proxy function for cfg.ProxyMode:
//   - no-proxy: direct connections
//   - system: HTTP_PROXY, HTTPS_PROXY and NO_PROXY from the environment
//   - manual: cfg.ProxyURL, bypassed for hosts matching cfg.NoProxy
//   - basic: as manual, with ProxyUser/ProxyPassword sent as proxy credentials
//   - ntlm: as basic; NewClient also negotiates NTLM with the credentials
func ProxyFunc(cfg config.RemoteConfig, logger *logging.Logger) (func(*nethttp.Request) (*url.URL, error), error) {
	logger = logging.OrNop(logger)

	switch mode := strings.ToLower(cfg.ProxyMode); mode {
	case "no-proxy", "":
		return nil, nil

	case "system":
		return nethttp.ProxyFromEnvironment, nil

	case "manual", "basic", "ntlm":
		proxyURL, err := buildProxyURL(cfg, mode != "manual")
		if err != nil {
			return nil, err
		}
		if mode != "manual" && cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			logger.Warn().Str("mode", mode).Msg("proxy user set without password, proxy auth disabled")
		}
		return proxyFuncWithBypass(proxyURL, cfg.NoProxy, logger), nil

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}
}

// buildProxyURL parses cfg.ProxyURL. Credentials are embedded only when
// withAuth is set and both user and password are present.
func buildProxyURL(cfg config.RemoteConfig, withAuth bool) (*url.URL, error) {
	if cfg.ProxyURL == "" {
		return nil, config.ErrMissingProxyURL
	}
	proxyURL, err := url.Parse(cfg.ProxyURL)
	if err != nil || proxyURL.Host == "" {
		return nil, fmt.Errorf("invalid proxy_url %q", cfg.ProxyURL)
	}
	if withAuth && cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return proxyURL, nil
}

func proxyActive(cfg config.RemoteConfig) bool {
	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}

// proxyFuncWithBypass returns a proxy function that respects the noProxy bypass list.
// With an empty noProxy it behaves like nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, logger *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			logger.Debug().Str("host", req.URL.Host).Msg("proxy bypass")
		} else {
			logger.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("proxied")
		}
		return result, err
	}
}

// ntlmTransport attaches the configured credentials as basic auth so the
// Negotiator can answer an NTLM or Negotiate challenge with them. The
// Negotiator strips them from the first, anonymous attempt.
type ntlmTransport struct {
	user     string
	password string
	next     ntlmssp.Negotiator
}

func newNTLMTransport(cfg config.RemoteConfig, rt nethttp.RoundTripper) *ntlmTransport {
	return &ntlmTransport{
		user:     cfg.ProxyUser,
		password: cfg.ProxyPassword,
		next:     ntlmssp.Negotiator{RoundTripper: rt},
	}
}

func (t *ntlmTransport) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	if t.user == "" || req.Header.Get("Authorization") != "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.user, t.password)
	return t.next.RoundTrip(r)
}
