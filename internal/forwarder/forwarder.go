// Package forwarder implements the Generic Forwarder (§4.I): rewriting an
// inbound request's URI to the sidecar's authority, attaching the session's
// permission tags as a query parameter, and relaying the request and
// response bodies verbatim.
package forwarder

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamspace/authgateway/internal/apperr"
)

// Forwarder holds the process-wide HTTP client used for every forwarded
// request. A single *http.Client is safe for concurrent use and reuses
// connections to the sidecar, per §5's "HTTP forwarding client is
// process-wide and thread-safe by contract".
type Forwarder struct {
	client     *http.Client
	sidecarURL *url.URL
}

// New builds a Forwarder targeting sidecarURL. scheme defaults to "http" if
// the configured URL omits one.
func New(sidecarURL *url.URL) *Forwarder {
	return &Forwarder{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		sidecarURL: sidecarURL,
	}
}

// Forward rebuilds r's URI to target the sidecar with permissions appended
// to the query, streams the body through, and copies the sidecar's
// response back onto w in full.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, permissions []string) error {
	target := f.rewriteURL(r.URL, permissions)

	outbound, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		return apperr.ForwardingError(err)
	}
	outbound.Header = r.Header.Clone()
	outbound.ContentLength = r.ContentLength

	resp, err := f.client.Do(outbound)
	if err != nil {
		return apperr.ForwardingError(err)
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		return apperr.ForwardingError(err)
	}
	return nil
}

// rewriteURL builds the outbound URI: the sidecar's scheme and authority,
// the original path, and the original query with permissions= appended. If
// the original query is empty, permissions= becomes the sole parameter
// with no leading "&".
func (f *Forwarder) rewriteURL(original *url.URL, permissions []string) *url.URL {
	scheme := f.sidecarURL.Scheme
	if scheme == "" {
		scheme = "http"
	}

	query := original.RawQuery
	permParam := "permissions=" + strings.Join(permissions, ",")
	if query == "" {
		query = permParam
	} else {
		query = query + "&" + permParam
	}

	return &url.URL{
		Scheme:   scheme,
		Host:     f.sidecarURL.Host,
		Path:     original.Path,
		RawQuery: query,
	}
}
