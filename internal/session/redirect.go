package session

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRedirect extracts the authorization code from what the user pasted.
//
// Accepted forms are the full redirect URL, its query string, or the bare code. When the
// value carries a state parameter it must equal state.
func ParseRedirect(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("no redirect URL entered")
	}

	if !strings.Contains(input, "=") {
		return input, nil
	}

	raw := input
	if i := strings.Index(input, "?"); i >= 0 {
		raw = input[i+1:]
	}
	if i := strings.Index(raw, "#"); i >= 0 {
		raw = raw[:i]
	}

	query, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("could not parse redirect URL: %w", err)
	}

	if e := query.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}

	if got := query.Get("state"); got != "" && got != state {
		return "", fmt.Errorf("state mismatch in redirect URL")
	}

	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL has no code parameter")
	}

	return code, nil
}
