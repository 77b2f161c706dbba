package auth

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cookie is one browser cookie of a seller portal session
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain,omitempty"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
	Secure  bool      `json:"secure,omitempty"`
}

// Expired reports whether the cookie has a past expiry. Session cookies never expire.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && c.Expires.Before(now)
}

// HTTPCookie converts to a net/http cookie for a cookie jar
func (c Cookie) HTTPCookie() *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:    c.Name,
		Value:   c.Value,
		Domain:  strings.TrimPrefix(c.Domain, "."),
		Path:    path,
		Expires: c.Expires,
		Secure:  c.Secure,
	}
}

// LoadCookieFile reads a JSON cookie export or a Netscape cookies.txt file
func LoadCookieFile(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	cookies, err := ParseCookies(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cookies, nil
}

// ParseCookies detects the format of data and parses it
func ParseCookies(data []byte) ([]Cookie, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("cookie data is empty")
	}
	if trimmed[0] == '[' {
		return parseJSONCookies(trimmed)
	}
	return parseNetscapeCookies(trimmed)
}

// jsonCookie accepts the field spellings of common browser extensions and
// of selenium's get_cookies output.
type jsonCookie struct {
	Name           string          `json:"name"`
	Value          string          `json:"value"`
	Domain         string          `json:"domain"`
	Path           string          `json:"path"`
	Secure         bool            `json:"secure"`
	Expires        json.RawMessage `json:"expires"`
	Expiry         json.RawMessage `json:"expiry"`
	ExpirationDate json.RawMessage `json:"expirationDate"`
}

func parseJSONCookies(data []byte) ([]Cookie, error) {
	var raw []jsonCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON cookie export: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for i, rc := range raw {
		if rc.Name == "" {
			return nil, fmt.Errorf("cookie %d has no name", i)
		}
		expires, err := parseExpiry(rc.Expires, rc.Expiry, rc.ExpirationDate)
		if err != nil {
			return nil, fmt.Errorf("cookie %q: %w", rc.Name, err)
		}
		cookies = append(cookies, Cookie{
			Name:    rc.Name,
			Value:   rc.Value,
			Domain:  rc.Domain,
			Path:    rc.Path,
			Expires: expires,
			Secure:  rc.Secure,
		})
	}
	return cookies, nil
}

// parseExpiry takes the first present value: unix seconds (int or float) or an RFC3339 string
func parseExpiry(candidates ...json.RawMessage) (time.Time, error) {
	for _, raw := range candidates {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return time.Time{}, err
			}
			if s == "" || strings.EqualFold(s, "session") {
				return time.Time{}, nil
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid expiry %q", s)
			}
			return t, nil
		}
		var secs float64
		if err := json.Unmarshal(raw, &secs); err != nil {
			return time.Time{}, fmt.Errorf("invalid expiry %s", raw)
		}
		if secs <= 0 {
			return time.Time{}, nil
		}
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	}
	return time.Time{}, nil
}

// parseNetscapeCookies reads the tab separated cookies.txt format:
// domain, include-subdomains, path, secure, expiry, name, value.
func parseNetscapeCookies(data []byte) ([]Cookie, error) {
	var cookies []Cookie
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
		} else if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("line %d: expected 7 tab separated fields, got %d", lineNo, len(fields))
		}

		var expires time.Time
		if secs, err := strconv.ParseInt(fields[4], 10, 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid expiry %q", lineNo, fields[4])
		} else if secs > 0 {
			expires = time.Unix(secs, 0).UTC()
		}

		cookies = append(cookies, Cookie{
			Domain:  fields[0],
			Path:    fields[2],
			Secure:  strings.EqualFold(fields[3], "TRUE"),
			Expires: expires,
			Name:    fields[5],
			Value:   fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no cookies found")
	}
	return cookies, nil
}

// ParseCookieHeader parses a raw "name=value; name2=value2" header
func ParseCookieHeader(header string) []Cookie {
	header = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Cookie:"))
	var cookies []Cookie
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, Cookie{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	return cookies
}
