// Package privacy removes credentials from URLs and error messages before
// they reach logs or telemetry.
package privacy

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "***"

// urlPattern finds scheme://... tokens in free text, including shoutrrr
// service URLs such as telegram://token@telegram.
var urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)

// sensitiveParams are query keys whose values are always hidden.
var sensitiveParams = []string{"token", "access_token", "password", "pass", "key", "apikey", "api_key", "secret"}

// ScrubMessage redacts every URL found in message.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, RedactURL)
}

// RedactURL hides userinfo and sensitive query values but keeps the scheme,
// host and path so the URL is still useful for debugging.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[redacted-url]"
	}

	if u.User != nil {
		u.User = url.User(redacted)
	}

	if u.RawQuery != "" {
		query := u.Query()
		for key := range query {
			if isSensitiveParam(key) {
				query.Set(key, redacted)
			}
		}
		u.RawQuery = query.Encode()
	}

	// url.String escapes the placeholder in userinfo
	return strings.ReplaceAll(u.String(), url.QueryEscape(redacted), redacted)
}

func isSensitiveParam(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveParams {
		if key == s {
			return true
		}
	}
	return false
}
