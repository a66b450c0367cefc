package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
)

// maxBodySize caps a reply body; a full uci dump of a large router is well below it.
const maxBodySize = 16 << 20

// HTTPTransport posts envelopes with net/http. Cookies are kept in a jar and
// only sent when a request asks for credentials.
type HTTPTransport struct {
	withCookies *http.Client
	anonymous   *http.Client

	expectedFingerprint string
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient replaces the underlying client. Its Jar is used for
// credentialed requests; a copy without the jar serves the others.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		t.withCookies = c
	}
}

// WithFingerprint pins the endpoint certificate to a SHA-256 hex fingerprint.
// Routers commonly serve self-signed certificates, so chain verification is
// replaced by the pin when one is set.
func WithFingerprint(fp string) Option {
	return func(t *HTTPTransport) {
		t.expectedFingerprint = strings.ToLower(strings.ReplaceAll(fp, ":", ""))
	}
}

// NewHTTPTransport creates a transport with its own cookie jar.
func NewHTTPTransport(opts ...Option) *HTTPTransport {
	jar, _ := cookiejar.New(nil) // never fails without options
	t := &HTTPTransport{
		withCookies: &http.Client{Jar: jar},
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.expectedFingerprint != "" {
		t.withCookies.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify:    true, // verified by fingerprint below
				VerifyPeerCertificate: t.verifyFingerprint,
			},
		}
	}

	anon := *t.withCookies
	anon.Jar = nil
	t.anonymous = &anon
	return t
}

func (t *HTTPTransport) verifyFingerprint(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("no peer certificate presented")
	}
	hash := sha256.Sum256(rawCerts[0])
	fingerprint := hex.EncodeToString(hash[:])
	if fingerprint != t.expectedFingerprint {
		return fmt.Errorf("certificate fingerprint mismatch: expected %s, got %s", t.expectedFingerprint, fingerprint)
	}
	return nil
}

// Post sends req as a single HTTP POST. A context deadline set by the caller
// aborts the exchange; Request.Timeout is enforced by the timeout middleware.
func (t *HTTPTransport) Post(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	client := t.anonymous
	if req.Credentials {
		client = t.withCookies
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP POST %s: %w", req.URL, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		Status:     httpResp.StatusCode,
		StatusText: statusText(httpResp),
		Body:       body,
	}, nil
}

// statusText strips the numeric code from "403 Forbidden".
func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	text = strings.TrimSpace(text)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
