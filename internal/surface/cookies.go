package surface

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// CookieStore is the cookie jar shared by both surfaces. Cookies are
// keyed by host; a cookie replaces an earlier one with the same name.
type CookieStore struct {
	mu      sync.RWMutex
	cookies map[string][]*http.Cookie
}

// NewCookieStore creates an empty store.
func NewCookieStore() *CookieStore {
	return &CookieStore{cookies: make(map[string][]*http.Cookie)}
}

// Set inserts or replaces a cookie for the given host.
func (c *CookieStore) Set(host string, cookie *http.Cookie) {
	if host == "" || cookie == nil || cookie.Name == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.cookies[host]
	for i, ck := range existing {
		if ck.Name == cookie.Name {
			existing[i] = cookie
			return
		}
	}
	c.cookies[host] = append(existing, cookie)
}

// Absorb extracts every Set-Cookie record from an HTTP response and
// stores it under the response's request host.
func (c *CookieStore) Absorb(resp *http.Response) {
	if resp == nil {
		return
	}

	host := ""
	if resp.Request != nil && resp.Request.URL != nil {
		host = resp.Request.URL.Host
	}
	for _, cookie := range resp.Cookies() {
		h := host
		if cookie.Domain != "" {
			h = strings.TrimPrefix(cookie.Domain, ".")
		}
		c.Set(h, cookie)
	}
}

// Cookies returns the cookies stored for a host.
func (c *CookieStore) Cookies(host string) []*http.Cookie {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*http.Cookie, len(c.cookies[host]))
	copy(out, c.cookies[host])
	return out
}

// Header builds a Cookie request header value for the given URL, or
// an empty string if nothing is stored for its host.
func (c *CookieStore) Header(u *url.URL) string {
	if u == nil {
		return ""
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var pairs []string
	for _, cookie := range c.cookies[u.Host] {
		pairs = append(pairs, fmt.Sprintf("%s=%s", cookie.Name, cookie.Value))
	}
	return strings.Join(pairs, "; ")
}
