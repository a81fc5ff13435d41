package utils

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var (
	urlRegex      = regexp.MustCompile(`https?://[^\s]+`)
	markdownRegex = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)
	domainRegex   = regexp.MustCompile(`[a-z0-9][a-z0-9-]*(\.[a-z0-9][a-z0-9-]*)+`)
)

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid"}

// commonTLDs bounds bare-domain matching to labels spammers actually use, so
// prose like "v1.2" or "e.g" is not mistaken for a link.
var commonTLDs = map[string]struct{}{
	"com": {}, "org": {}, "net": {}, "io": {}, "co": {}, "ly": {},
	"me": {}, "gg": {}, "tv": {}, "dev": {}, "app": {}, "ai": {},
}

func ContainsLink(content string) bool {
	lower := strings.ToLower(content)

	if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") {
		return true
	}
	if idx := strings.Index(lower, "www."); idx >= 0 {
		if strings.Contains(lower[idx+len("www."):], ".") {
			return true
		}
	}
	if markdownRegex.MatchString(content) {
		return true
	}
	for _, candidate := range domainRegex.FindAllString(lower, -1) {
		labels := strings.Split(candidate, ".")
		if _, ok := commonTLDs[labels[len(labels)-1]]; ok {
			return true
		}
	}
	return false
}

func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

func NormalizeURL(raw string) (string, string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	host := strings.ToLower(parsed.Hostname())
	asciiHost, err := idna.ToASCII(host)
	if err == nil {
		host = asciiHost
	}

	parsed.Host = host
	parsed.Fragment = ""
	parsed.User = nil

	query := parsed.Query()
	for _, key := range trackingParams {
		query.Del(key)
	}
	parsed.RawQuery = normalizeQuery(query)

	return parsed.String(), host, nil
}

func normalizeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clean := url.Values{}
	for _, key := range keys {
		clean[key] = values[key]
	}
	return clean.Encode()
}
