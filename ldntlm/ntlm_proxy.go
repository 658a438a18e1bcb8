// Package ldntlm allows components that talk to a sync hub to connect through a proxy server that
// uses NTLM authentication.
//
// Set the HTTP client factory in the store's HTTP configuration:
//
//	factory, err := ldntlm.NewNTLMProxyHTTPClientFactory("http://my-proxy:8080",
//	    "username", "password", "domain")
//	if err != nil {
//	    // there's some problem with the proxy settings
//	}
//	config := syncstore.Config{
//	    HTTP: ldcomponents.HTTPConfiguration().HTTPClientFactory(factory),
//	}
package ldntlm

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	ntlm "github.com/launchdarkly/go-ntlm-proxy-auth"

	"github.com/snapshelf/syncstore/ldhttp"
)

// NewNTLMProxyHTTPClientFactory returns a factory function for creating HTTP clients that will
// connect through an NTLM-authenticated proxy server.
//
// If you are connecting to the proxy securely and need to specify any custom CA certificates, use
// ldhttp.CACertOption or ldhttp.CACertFileOption.
func NewNTLMProxyHTTPClientFactory(
	proxyURL, username, password, domain string,
	options ...ldhttp.TransportOption,
) (func() *http.Client, error) {
	if proxyURL == "" || username == "" || password == "" {
		return nil, errors.New("proxyURL, username, and password are required")
	}
	parsedProxyURL, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %s: %w", proxyURL, err)
	}
	// Check the transport options now so that a bad certificate is reported here
	if _, _, err := ldhttp.NewHTTPTransport(options...); err != nil {
		return nil, err
	}
	return func() *http.Client {
		client := *http.DefaultClient
		if transport, dialer, err := ldhttp.NewHTTPTransport(options...); err == nil {
			transport.DialContext = ntlm.NewNTLMProxyDialContext(dialer, *parsedProxyURL,
				username, password, domain, transport.TLSClientConfig)
			transport.Proxy = nil
			client.Transport = transport
		}
		return &client
	}, nil
}
