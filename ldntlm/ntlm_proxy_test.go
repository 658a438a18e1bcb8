package ldntlm

import (
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapshelf/syncstore/ldhttp"
)

const (
	username      = "username"
	password      = "password"
	domain        = "domain"
	targetURL     = "http://example.com/test"
	targetServer  = "example.com:80"
	targetURLPath = "/test"
	responseBody  = "hello"
	// The following base64 NTLM message strings/patterns should not be considered authoritative; the exact content will
	// vary depending on the time, the server implementation, etc. We're just verifying that the proxy logic is sending
	// well-formed messages in the order that we expect, and is able to decode a well-formed server response.
	proxyAuthStep1Expected      = "NTLM TlRMTVNTUAABAAAAAZKIoAYABgAoAAAAAAAAAC4AAAAGAbEdAAAAD0RPTUFJTg=="
	proxyAuthStep2Challenge     = "NTLM TlRMTVNTUAACAAAADAAMADAAAAA1gomgZ38cVXpe6WwAAAAAAAAAAEYARgA8AAAAVABFAFMAVABOAFQAAgAMAFQARQBTAFQATgBUAAEADABNAEUATQBCAEUAUgADAB4AbQBlAG0AYgBlAHIALgB0AGUAcwB0AC4AYwBvAG0AAAAAAA=="
	proxyAuthStep3ExpectedRegex = "NTLM TlRMTVNTUAADAAAAAAAAAEAAAAB2AHYAQAAAAAwADAC2AAAAEAAQAMIAAAAUABQA0gAAAAAAAAAAAAAANYK.*AAAAAAgAMAFQARQBTAFQATgBUAAEADABNAEUATQBCAEUAUgADAB4AbQBlAG0AYgBlAHIALgB0AGUAcwB0AC4AYwBvAG0AAAAAAAAAAABUAEUAUwBUAE4AVAB1AHMAZQByAG4AYQBtAGUAZwBvAC0AbgB0AGwAbQBzAHMAcAA="
)

func requireResponseThroughProxy(t *testing.T, client *http.Client) {
	resp, err := client.Get(targetURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, responseBody, string(body))
}

func TestConnectThroughNTLMProxy(t *testing.T) {
	t.Run("plain proxy", func(t *testing.T) {
		httphelpers.WithServer(fakeNTLMProxyHandler(t), func(server *httptest.Server) {
			factory, err := NewNTLMProxyHTTPClientFactory(server.URL, username, password, domain)
			require.NoError(t, err)
			requireResponseThroughProxy(t, factory())
		})
	})

	t.Run("secure proxy with self-signed cert", func(t *testing.T) {
		httphelpers.WithSelfSignedServer(fakeNTLMProxyHandler(t),
			func(server *httptest.Server, certData []byte, certs *x509.CertPool) {
				factory, err := NewNTLMProxyHTTPClientFactory(server.URL, username, password, domain,
					ldhttp.CACertOption(certData))
				require.NoError(t, err)
				requireResponseThroughProxy(t, factory())
			})
	})
}

func TestInvalidParameters(t *testing.T) {
	for name, params := range map[string][]string{
		"no proxy URL":  {"", "user", "pass"},
		"no username":   {"http://proxy", "", "pass"},
		"no password":   {"http://proxy", "user", ""},
		"malformed URL": {"://bad", "user", "pass"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewNTLMProxyHTTPClientFactory(params[0], params[1], params[2], domain)
			assert.Error(t, err)
		})
	}

	t.Run("bad CA cert", func(t *testing.T) {
		_, err := NewNTLMProxyHTTPClientFactory("http://proxy", "user", "pass", domain,
			ldhttp.CACertOption([]byte("not a valid cert")))
		assert.Error(t, err)
	})
}

// fakeNTLMProxyHandler plays the proxy side of a minimal NTLM exchange: a CONNECT carrying the
// negotiate message gets a 407 with a challenge, a CONNECT carrying the authenticate message gets a
// 200, and the request that follows on the tunnel gets the response body.
func fakeNTLMProxyHandler(t *testing.T) http.Handler {
	step := 0
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		step++
		proxyAuth := req.Header.Get("Proxy-Authorization")
		if step < 3 && (req.Method != "CONNECT" || req.RequestURI != targetServer) {
			t.Logf("step %d: unexpected request %s %s", step, req.Method, req.RequestURI)
			w.WriteHeader(405)
			return
		}
		switch step {
		case 1:
			if proxyAuth != proxyAuthStep1Expected {
				t.Logf("step 1: unexpected Proxy-Authorization %q", proxyAuth)
				w.WriteHeader(401)
				return
			}
			w.Header().Set("Proxy-Authenticate", proxyAuthStep2Challenge)
			w.WriteHeader(407)
		case 2:
			if matched, _ := regexp.MatchString(proxyAuthStep3ExpectedRegex, proxyAuth); !matched {
				t.Logf("step 2: unexpected Proxy-Authorization %q", proxyAuth)
				w.WriteHeader(401)
				return
			}
			w.WriteHeader(200)
		default:
			if req.URL.Path != targetURLPath {
				w.WriteHeader(404)
				return
			}
			w.WriteHeader(200)
			_, _ = w.Write([]byte(responseBody))
		}
	})
}
