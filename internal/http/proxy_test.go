package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/tagview/tagview/internal/config"
	"github.com/tagview/tagview/internal/logging"
)

func TestProxyFuncWithBypass(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")

	tests := []struct {
		name    string
		noProxy string
		target  string
		direct  bool
	}{
		{"empty bypass list", "", "https://media.example.com/pages/0", false},
		{"wildcard domain", "*.example.com", "https://media.example.com/pages/0", true},
		{"exact domain", "example.com", "https://example.com/pages/0", true},
		{"exact domain subdomain", "example.com", "https://cdn.example.com/pages/0", true},
		{"cidr", "10.0.0.0/8", "http://10.1.2.3/pages/0", true},
		{"non matching host", "*.internal.corp", "https://media.example.com/pages/0", false},
		{"multiple patterns", "localhost, *.internal.corp,example.com", "http://localhost:8080/count", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := proxyFuncWithBypass(proxyURL, tt.noProxy, logging.Nop())
			req, _ := http.NewRequest("GET", tt.target, nil)
			result, err := fn(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.direct && result != nil {
				t.Errorf("expected direct connection, got proxy %v", result)
			}
			if !tt.direct {
				if result == nil {
					t.Fatal("expected proxy URL, got nil (direct)")
				}
				if result.Host != "proxy.corp:8080" {
					t.Errorf("expected proxy.corp:8080, got %s", result.Host)
				}
			}
		})
	}
}

func TestProxyFunc_Modes(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RemoteConfig
		wantNil bool
		wantErr bool
	}{
		{"no proxy", config.RemoteConfig{ProxyMode: "no-proxy"}, true, false},
		{"empty mode", config.RemoteConfig{}, true, false},
		{"system", config.RemoteConfig{ProxyMode: "system"}, false, false},
		{"manual", config.RemoteConfig{ProxyMode: "manual", ProxyURL: "http://proxy.corp:3128"}, false, false},
		{"manual without url", config.RemoteConfig{ProxyMode: "manual"}, true, true},
		{"manual bad url", config.RemoteConfig{ProxyMode: "manual", ProxyURL: "::"}, true, true},
		{"basic", config.RemoteConfig{ProxyMode: "basic", ProxyURL: "http://proxy.corp:3128", ProxyUser: "u"}, false, false},
		{"basic without url", config.RemoteConfig{ProxyMode: "basic"}, true, true},
		{"ntlm", config.RemoteConfig{ProxyMode: "ntlm", ProxyURL: "http://proxy.corp:3128", ProxyUser: "u", ProxyPassword: "p"}, false, false},
		{"ntlm without url", config.RemoteConfig{ProxyMode: "ntlm", ProxyUser: "u"}, true, true},
		{"unknown", config.RemoteConfig{ProxyMode: "socks"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := ProxyFunc(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProxyFunc() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (fn == nil) != tt.wantNil {
				t.Errorf("ProxyFunc() nil = %v, want %v", fn == nil, tt.wantNil)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(config.RemoteConfig{ProxyMode: "manual", ProxyURL: "http://proxy.corp:3128"}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	tr, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport %T", client.Transport)
	}
	if tr.ForceAttemptHTTP2 {
		t.Error("HTTP/2 should be off behind a proxy")
	}
	if client.Timeout != 0 {
		t.Errorf("client timeout should be 0, got %v", client.Timeout)
	}

	if _, err := NewClient(config.RemoteConfig{ProxyMode: "bogus"}, nil); err == nil {
		t.Error("expected error for unknown proxy mode")
	}
}

func TestProxyFunc_Credentials(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RemoteConfig
		wantUser string
	}{
		{"basic with credentials", config.RemoteConfig{ProxyMode: "basic", ProxyURL: "http://proxy.corp:3128", ProxyUser: "svc", ProxyPassword: "pw"}, "svc"},
		{"basic without password", config.RemoteConfig{ProxyMode: "basic", ProxyURL: "http://proxy.corp:3128", ProxyUser: "svc"}, ""},
		{"manual ignores credentials", config.RemoteConfig{ProxyMode: "manual", ProxyURL: "http://proxy.corp:3128", ProxyUser: "svc", ProxyPassword: "pw"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := ProxyFunc(tt.cfg, nil)
			if err != nil {
				t.Fatalf("ProxyFunc() error: %v", err)
			}
			req, _ := http.NewRequest("GET", "https://media.example.com/count", nil)
			proxyURL, err := fn(req)
			if err != nil || proxyURL == nil {
				t.Fatalf("expected proxy URL, got %v, %v", proxyURL, err)
			}
			if got := proxyURL.User.Username(); got != tt.wantUser {
				t.Errorf("proxy user = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestNewClient_NTLMSendsCredentials(t *testing.T) {
	var (
		mu    sync.Mutex
		auths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		if user, pass, ok := r.BasicAuth(); ok && user == "svc" && pass == "pw" {
			w.Write([]byte(`{"count": 3}`))
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="media"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(config.RemoteConfig{
		ProxyMode:     "ntlm",
		ProxyURL:      "http://proxy.corp:3128",
		NoProxy:       "127.0.0.1,localhost",
		ProxyUser:     "svc",
		ProxyPassword: "pw",
	}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, ok := client.Transport.(*ntlmTransport); !ok {
		t.Fatalf("unexpected transport %T", client.Transport)
	}

	resp, err := client.Get(srv.URL + "/count")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(auths) != 2 || auths[0] != "" || auths[1] == "" {
		t.Errorf("expected an anonymous attempt then an authenticated one, got %q", auths)
	}
}
