package surface

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Policy is a navigation policy decision.
type Policy int

const (
	// PolicyAllow lets the navigation proceed.
	PolicyAllow Policy = iota
	// PolicyCancel aborts the navigation.
	PolicyCancel
)

// NavigationDelegate receives navigation lifecycle callbacks. Action
// and response decisions fire on the navigation goroutine;
// NavigationFinished is posted to the host queue.
type NavigationDelegate interface {
	DecideNavigationAction(s *Surface, target *url.URL) Policy
	DecideNavigationResponse(s *Surface, resp *http.Response) Policy
	NavigationFinished(s *Surface)
}

// Navigate loads a page asynchronously: fetch, response policy and
// cookie propagation, inline script execution, then the finished
// callback. Failures abort the navigation without a callback.
func (s *Surface) Navigate(rawURL string) {
	s.evalQ.Post(func() {
		s.navigate(rawURL)
	})
}

func (s *Surface) navigate(rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		s.log.Warn("invalid navigation URL", zap.String("url", rawURL), zap.Error(err))
		return
	}

	if s.delegate != nil && s.delegate.DecideNavigationAction(s, u) == PolicyCancel {
		s.log.Debug("navigation cancelled by action policy", zap.String("url", rawURL))
		return
	}

	req := s.client.R()
	if header := s.cookies.Header(u); header != "" {
		req.SetHeader("Cookie", header)
	}

	resp, err := req.Get(u.String())
	if err != nil {
		s.log.Warn("navigation failed", zap.String("url", rawURL), zap.Error(err))
		return
	}

	if s.delegate != nil {
		if s.delegate.DecideNavigationResponse(s, resp.RawResponse) == PolicyCancel {
			s.log.Debug("navigation cancelled by response policy", zap.String("url", rawURL))
			return
		}
	}

	status := resp.StatusCode()
	if status < 200 || status >= 400 {
		s.log.Warn("navigation rejected", zap.String("url", rawURL), zap.Int("status", status))
		return
	}

	title, scripts, err := s.processHTML(resp.String())
	if err != nil {
		s.log.Warn("failed to process page", zap.String("url", rawURL), zap.Error(err))
		return
	}

	for _, src := range scripts {
		s.runPageScript(src)
	}

	s.mu.Lock()
	s.url = u.String()
	s.title = title
	s.mu.Unlock()

	s.log.Debug("navigation finished", zap.String("url", rawURL), zap.String("title", title))

	if s.delegate != nil {
		s.host.Post(func() { s.delegate.NavigationFinished(s) })
	}
}

// processHTML extracts the page title and inline script bodies.
// External scripts and inline event handlers are stripped.
func (s *Surface) processHTML(html string) (string, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, err
	}

	title := doc.Find("title").First().Text()

	doc.Find("[onclick]").RemoveAttr("onclick")
	doc.Find("[onload]").RemoveAttr("onload")
	doc.Find("[onerror]").RemoveAttr("onerror")
	doc.Find("[onsubmit]").RemoveAttr("onsubmit")

	var scripts []string
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		src := sel.Text()
		if strings.TrimSpace(src) != "" {
			scripts = append(scripts, src)
		}
	})

	return title, scripts, nil
}

// runPageScript executes one inline script with the page timeout.
// Protocol evaluations via Evaluate are deliberately not bounded; only
// page scripts encountered during navigation are.
func (s *Surface) runPageScript(src string) {
	timer := time.AfterFunc(s.pageTimeout, func() {
		s.vm.Interrupt("page script timeout")
	})
	defer timer.Stop()

	if _, err := s.vm.RunString(src); err != nil {
		if _, interrupted := err.(*goja.InterruptedError); interrupted {
			s.vm.ClearInterrupt()
		}
		s.log.Debug("page script failed", zap.Error(err))
	}
}
