package strip

import (
	"net/http"
	"net/url"

	"github.com/glimmerlab/strip/internal/surface"
)

// lifecycleAdapter wraps navigation events for both surfaces: it
// propagates response cookies into the shared store and flushes the
// deferred handoff message once a navigation completes. It holds a
// non-owning back-reference to the service.
type lifecycleAdapter struct {
	svc     *Service
	cookies *surface.CookieStore
}

var _ surface.NavigationDelegate = (*lifecycleAdapter)(nil)

// DecideNavigationAction allows every navigation; there is no URL
// filtering at this layer.
func (a *lifecycleAdapter) DecideNavigationAction(_ *surface.Surface, _ *url.URL) surface.Policy {
	return surface.PolicyAllow
}

// DecideNavigationResponse absorbs Set-Cookie records into the shared
// cookie store and allows the response. A response that cannot be
// interpreted as HTTP cancels the navigation.
func (a *lifecycleAdapter) DecideNavigationResponse(_ *surface.Surface, resp *http.Response) surface.Policy {
	if resp == nil {
		return surface.PolicyCancel
	}
	a.cookies.Absorb(resp)
	return surface.PolicyAllow
}

// NavigationFinished runs on the dispatch queue once either surface
// completes a page load.
func (a *lifecycleAdapter) NavigationFinished(_ *surface.Surface) {
	a.svc.flushInitialMessage()
}
