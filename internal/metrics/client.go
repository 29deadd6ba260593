// Package metrics talks to the backend metrics endpoint: a single
// hashed-token GET that hands back the destination URL and its parameters.
package metrics

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidURL      = errors.New("metrics: invalid url")
	ErrInvalidResponse = errors.New("metrics: invalid response")
	ErrBadStatus       = errors.New("metrics: unexpected status")
)

// Response is the validated payload. Parameters excludes the reserved
// URL/is_organic fields and any x_-prefixed keys.
type Response struct {
	IsOrganic  bool
	URL        string
	Parameters map[string]string
}

type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Token derives the request token: md5 over colon-joined adID:salt:bundleID,
// or salt:bundleID when no ad identifier is available. Lower-case hex; the
// scheme must match the backend bit-exactly.
func Token(bundleID, salt, adID string) string {
	raw := salt + ":" + bundleID
	if adID != "" {
		raw = adID + ":" + raw
	}
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// FetchMetrics performs the handshake. The caller guarantees baseURL and
// salt are non-empty; adID may be empty.
func (c *Client) FetchMetrics(ctx context.Context, baseURL, bundleID, salt, adID string) (Response, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Response{}, ErrInvalidURL
	}

	q := u.Query()
	q.Set("b", bundleID)
	q.Set("t", Token(bundleID, salt, adID))
	if adID != "" {
		q.Set("i", adID)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Response{}, ErrInvalidURL
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("metrics request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Response{}, fmt.Errorf("%w %d", ErrBadStatus, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Response{}, fmt.Errorf("metrics: decode body: %w", err)
	}
	return parse(raw)
}

func parse(raw map[string]any) (Response, error) {
	dest, _ := raw["URL"].(string)
	if dest == "" {
		return Response{}, ErrInvalidResponse
	}

	isOrganic, _ := raw["is_organic"].(bool)

	params := make(map[string]string)
	for k, v := range raw {
		if k == "URL" || k == "is_organic" || strings.HasPrefix(k, "x_") {
			continue
		}
		if s, ok := v.(string); ok {
			params[k] = s
		}
	}

	return Response{IsOrganic: isOrganic, URL: dest, Parameters: params}, nil
}
