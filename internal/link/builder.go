// Package link composes the final destination URL from whichever parameter
// source resolved: attribution data or the metrics handshake. Pure functions,
// no I/O.
package link

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"batterycare/internal/metrics"
)

type pair struct {
	key   string
	value string
}

// BuildTrackingURL builds the destination from a metrics response. Organic
// responses pass through as parsed, with nothing appended. Non-organic
// responses grow a /sub_id_2 path segment when present, then the remaining
// parameters, bundle, and the optional idfa / onesignal_id, in that order.
// The second return is false only when the base URL cannot be parsed.
func BuildTrackingURL(resp metrics.Response, bundleID, adID, onesignalID string) (string, bool) {
	if resp.IsOrganic {
		u, err := url.Parse(resp.URL)
		if err != nil {
			return "", false
		}
		return u.String(), true
	}

	base := resp.URL
	if sub2 := resp.Parameters["sub_id_2"]; sub2 != "" {
		base = base + "/" + sub2
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", false
	}

	// map iteration order is unspecified; sort the remainder for a stable URL
	keys := make([]string, 0, len(resp.Parameters))
	for k := range resp.Parameters {
		if k != "sub_id_2" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]pair, 0, len(keys)+3)
	for _, k := range keys {
		pairs = append(pairs, pair{k, resp.Parameters[k]})
	}
	pairs = append(pairs, pair{"bundle", bundleID})
	if adID != "" {
		pairs = append(pairs, pair{"idfa", adID})
	}
	if onesignalID != "" {
		pairs = append(pairs, pair{"onesignal_id", onesignalID})
	}

	u.RawQuery = mergeQuery(u.RawQuery, pairs)
	return u.String(), true
}

// BuildAttributionURL builds the destination directly from attribution
// parameters. It needs a non-empty cm_id and the remote campaign base URL;
// query order is fixed: app_name, tm_id, sub_id_1..15, bundle, onesignal_id,
// appsflyer_id, idfa.
func BuildAttributionURL(params map[string]string, campaignBaseURL, bundleID, adID, onesignalID string) (string, bool) {
	cmID := params["cm_id"]
	if cmID == "" || campaignBaseURL == "" || bundleID == "" {
		return "", false
	}

	base := campaignBaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	base += cmID

	u, err := url.Parse(base)
	if err != nil {
		return "", false
	}

	var pairs []pair
	if v := params["app_name"]; v != "" {
		pairs = append(pairs, pair{"app_name", v})
	}
	if v := params["tm_id"]; v != "" {
		pairs = append(pairs, pair{"tm_id", v})
	}
	for i := 1; i <= 15; i++ {
		key := fmt.Sprintf("sub_id_%d", i)
		if v := params[key]; v != "" {
			pairs = append(pairs, pair{key, v})
		}
	}
	pairs = append(pairs, pair{"bundle", bundleID})
	if onesignalID != "" {
		pairs = append(pairs, pair{"onesignal_id", onesignalID})
	}
	if v := params["appsflyer_id"]; v != "" {
		pairs = append(pairs, pair{"appsflyer_id", v})
	}
	if adID != "" {
		pairs = append(pairs, pair{"idfa", adID})
	}

	u.RawQuery = mergeQuery(u.RawQuery, pairs)
	return u.String(), true
}

// mergeQuery appends pairs to an existing raw query without re-ordering
// either side.
func mergeQuery(existing string, pairs []pair) string {
	var b strings.Builder
	b.WriteString(existing)
	for _, p := range pairs {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
