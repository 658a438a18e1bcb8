package ldcomponents

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/snapshelf/syncstore/ldhttp"
	"github.com/snapshelf/syncstore/subsystems"
)

// DefaultConnectTimeout is the HTTP connection timeout that is used if HTTPConfigurationBuilder.ConnectTimeout()
// is not set.
const DefaultConnectTimeout = 3 * time.Second

// DefaultUserAgent is the User-Agent header sent to a sync hub unless UserAgent is set.
const DefaultUserAgent = "SyncStoreGo"

// HTTPConfigurationBuilder contains methods for configuring the HTTP behavior of components that
// talk to a sync hub.
//
// If you want to set non-default values for any of these properties, create a builder with
// ldcomponents.HTTPConfiguration(), change its properties with the HTTPConfigurationBuilder methods,
// and store it in Config.HTTP:
//
//	config := syncstore.Config{
//	    HTTP: ldcomponents.HTTPConfiguration().
//	        ConnectTimeout(3 * time.Second).
//	        ProxyURL(proxyURL),
//	}
type HTTPConfigurationBuilder struct {
	inited            bool
	connectTimeout    time.Duration
	httpClientFactory func() *http.Client
	proxyURL          string
	userAgent         string
	headers           http.Header
	caCerts           [][]byte
	caCertFiles       []string
}

// HTTPConfiguration returns a configuration builder for the HTTP configuration.
func HTTPConfiguration() *HTTPConfigurationBuilder {
	return &HTTPConfigurationBuilder{}
}

func (b *HTTPConfigurationBuilder) checkValid() bool {
	if b == nil {
		return false
	}
	if !b.inited {
		b.connectTimeout = DefaultConnectTimeout
		b.headers = make(http.Header)
		b.inited = true
	}
	return true
}

// CACert specifies a CA certificate to be added to the trusted root CA list for HTTPS requests.
//
// If the certificate is not valid, Build returns an error.
func (b *HTTPConfigurationBuilder) CACert(certData []byte) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.caCerts = append(b.caCerts, certData)
	}
	return b
}

// CACertFile specifies a CA certificate file to be added to the trusted root CA list for HTTPS
// requests.
//
// If the file cannot be read or the certificate is not valid, Build returns an error.
func (b *HTTPConfigurationBuilder) CACertFile(filePath string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.caCertFiles = append(b.caCertFiles, filePath)
	}
	return b
}

// ConnectTimeout sets the connection timeout.
//
// This is the maximum amount of time to wait for each individual connection attempt to a remote
// service before determining that that attempt has failed. It is not the same as the timeout for
// a whole request. The default is DefaultConnectTimeout.
func (b *HTTPConfigurationBuilder) ConnectTimeout(connectTimeout time.Duration) *HTTPConfigurationBuilder {
	if b.checkValid() {
		if connectTimeout <= 0 {
			b.connectTimeout = DefaultConnectTimeout
		} else {
			b.connectTimeout = connectTimeout
		}
	}
	return b
}

// Header specifies a custom HTTP header that should be added to all requests, such as an
// Authorization header for the hub. Setting a header to an empty value removes it.
func (b *HTTPConfigurationBuilder) Header(name, value string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		if value == "" {
			b.headers.Del(name)
		} else {
			b.headers.Set(name, value)
		}
	}
	return b
}

// HTTPClientFactory specifies a function for creating each HTTP client instance that is used.
//
// If this is set, the other properties that affect the transport are ignored. It is normally used
// with ldntlm.NewNTLMProxyHTTPClientFactory.
func (b *HTTPConfigurationBuilder) HTTPClientFactory(httpClientFactory func() *http.Client) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.httpClientFactory = httpClientFactory
	}
	return b
}

// ProxyURL specifies a proxy URL to be used for all requests. This overrides any setting of the
// HTTP_PROXY, HTTPS_PROXY, or NO_PROXY environment variables.
//
// If the string is not a valid URL, Build returns an error.
func (b *HTTPConfigurationBuilder) ProxyURL(proxyURL string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.proxyURL = proxyURL
	}
	return b
}

// UserAgent specifies an additional User-Agent value to be appended to the default one.
func (b *HTTPConfigurationBuilder) UserAgent(userAgent string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.userAgent = userAgent
	}
	return b
}

// Build is called internally by the store.
func (b *HTTPConfigurationBuilder) Build(
	clientContext subsystems.ClientContext,
) (subsystems.HTTPConfiguration, error) {
	if !b.checkValid() {
		defaults := HTTPConfigurationBuilder{}
		return defaults.Build(clientContext)
	}

	headers := b.headers.Clone()
	userAgent := DefaultUserAgent
	if b.userAgent != "" {
		userAgent = userAgent + " " + b.userAgent
	}
	headers.Set("User-Agent", userAgent)

	transportOpts := []ldhttp.TransportOption{ldhttp.ConnectTimeoutOption(b.connectTimeout)}
	for _, certData := range b.caCerts {
		transportOpts = append(transportOpts, ldhttp.CACertOption(certData))
	}
	for _, certFile := range b.caCertFiles {
		transportOpts = append(transportOpts, ldhttp.CACertFileOption(certFile))
	}
	if b.proxyURL != "" {
		u, err := url.Parse(b.proxyURL)
		if err != nil {
			return subsystems.HTTPConfiguration{}, errors.New("invalid proxy URL: " + b.proxyURL)
		}
		transportOpts = append(transportOpts, ldhttp.ProxyOption(*u))
	}

	clientFactory := b.httpClientFactory
	if clientFactory == nil {
		// Build the transport once now, so that bad certificates are reported as a build error
		if _, _, err := ldhttp.NewHTTPTransport(transportOpts...); err != nil {
			return subsystems.HTTPConfiguration{}, err
		}
		connectTimeout := b.connectTimeout
		clientFactory = func() *http.Client {
			client := *http.DefaultClient
			client.Timeout = connectTimeout
			if transport, _, err := ldhttp.NewHTTPTransport(transportOpts...); err == nil {
				client.Transport = transport
			}
			return &client
		}
	}

	return subsystems.HTTPConfiguration{
		DefaultHeaders:   headers,
		CreateHTTPClient: clientFactory,
	}, nil
}
