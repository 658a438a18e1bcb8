package ldhttpbackend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gregjones/httpcache"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/snapshelf/syncstore/internal/wire"
	"github.com/snapshelf/syncstore/subsystems"
)

const namespacesPath = "/namespaces/"

// HTTPStatusError is returned when the hub responds with a status other than success.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error %d for %s", e.StatusCode, e.URL)
}

type httpBackend struct {
	httpClient   *http.Client
	namespaceURI string
	headers      http.Header
	loggers      ldlog.Loggers
}

func newHTTPBackend(clientContext subsystems.ClientContext, baseURI, namespace string) *httpBackend {
	httpClient := clientContext.GetHTTP().CreateHTTPClient()
	modifiedClient := *httpClient
	modifiedClient.Transport = &httpcache.Transport{
		Cache:               httpcache.NewMemoryCache(),
		MarkCachedResponses: true,
		Transport:           httpClient.Transport,
	}
	loggers := clientContext.GetLogging().Loggers
	loggers.SetPrefix("HTTPBackend:")
	return &httpBackend{
		httpClient:   &modifiedClient,
		namespaceURI: baseURI + namespacesPath + url.PathEscape(namespace),
		headers:      clientContext.GetHTTP().DefaultHeaders,
		loggers:      loggers,
	}
}

func (h *httpBackend) BulkRead(ctx context.Context, names []string) (map[string]ldvalue.Value, error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	uri := h.namespaceURI + "?keys=" + url.QueryEscape(strings.Join(sorted, ","))

	body, cached, err := h.makeRequest(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if cached {
		h.loggers.Debugf("Namespace unchanged since last read: %s", uri)
	}
	values, err := wire.DecodeValues(body)
	if err != nil {
		return nil, fmt.Errorf("malformed namespace data from %s: %w", uri, err)
	}
	return values, nil
}

func (h *httpBackend) Write(ctx context.Context, values map[string]ldvalue.Value) error {
	_, _, err := h.makeRequest(ctx, http.MethodPatch, h.namespaceURI, wire.EncodeValues(values))
	return err
}

func (h *httpBackend) makeRequest(ctx context.Context, method, uri string, body []byte) ([]byte, bool, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, bodyReader)
	if err != nil {
		return nil, false, err
	}
	for k, vv := range h.headers {
		req.Header[k] = vv
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := h.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_, _ = io.ReadAll(res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, false, HTTPStatusError{StatusCode: res.StatusCode, URL: uri}
	}
	cached := res.Header.Get(httpcache.XFromCache) != ""
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, err
	}
	return data, cached, nil
}

func (h *httpBackend) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}
