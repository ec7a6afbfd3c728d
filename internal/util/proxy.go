package util

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc creates the proxy function of an oracle HTTP transport.
// Configured values win over HTTP_PROXY, HTTPS_PROXY and NO_PROXY; hosts
// matched by noProxy always connect directly
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" && noProxy == "" {
		return http.ProxyFromEnvironment
	}

	cfg := httpproxy.FromEnvironment()
	if httpProxy != "" {
		cfg.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTPSProxy = httpsProxy
	}
	if noProxy != "" {
		cfg.NoProxy = noProxy
	}

	proxyFor := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxyFor(req.URL)
	}
}

// HasProxy reports whether any proxy setting is configured explicitly
func HasProxy(httpProxy, httpsProxy, noProxy string) bool {
	return httpProxy != "" || httpsProxy != "" || noProxy != ""
}
