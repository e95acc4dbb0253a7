package strip

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/glimmerlab/strip/internal/dispatch"
	"github.com/glimmerlab/strip/internal/logging"
	"github.com/glimmerlab/strip/internal/surface"
	"github.com/glimmerlab/strip/internal/tracker"
)

// Channel names registered on the surfaces. The proxy channel exists
// on both; the trigger channels only on the story surface.
const (
	ProxyChannel = "stripProxy"
	ShowChannel  = "showStory"
	HideChannel  = "hideStory"
)

// Surface role names, passed to the Factory and reported by Name().
const (
	RoleStrip = "strip"
	RoleStory = "story"
)

// Protocol tag tokens, matched by substring containment.
const (
	tagLoaded  = "loaded"
	tagInitial = "initial"
	tagOpen    = "open"
	tagReady   = "isReady"
	tagNext    = "next"
	tagOff     = "off"
)

// ContentSurface is the opaque rendering handle the coordinator
// drives. *surface.Surface is the production implementation.
type ContentSurface interface {
	ID() string
	Name() string
	RegisterChannel(name string, fn func(channel, message string))
	UnregisterChannel(name string)
	Evaluate(script string, onComplete func(error))
	Navigate(rawURL string)
	Attach()
	Attached() bool
	Close()
}

// Delegate receives outward notifications. Calls fire on the
// coordinator's dispatch queue, at most once per event occurrence.
type Delegate interface {
	OnUnitReady(height float64)
	OnDisplayStory()
	OnHideStory()
}

// DataSource supplies the host's show/hide script expressions on
// demand. A missing data source makes the triggers no-ops.
type DataSource interface {
	ShowStoryScript() string
	HideStoryScript() string
}

// Factory builds a surface by role name ("strip" or "story").
type Factory func(name string) ContentSurface

// Options configures a new Service.
type Options struct {
	Logger      *logging.Logger
	Factory     Factory
	Client      *resty.Client
	PageTimeout time.Duration
}

// Service is the proxy coordinator.
type Service struct {
	cfg     Config
	log     *logging.Logger
	queue   *dispatch.Queue
	track   *tracker.Tracker
	factory Factory

	stripOnce sync.Once
	storyOnce sync.Once
	mu        sync.Mutex // guards the two handles below
	strip     ContentSurface
	story     ContentSurface

	state  LoadingState
	insets float64

	delegate   Delegate   // non-owning
	dataSource DataSource // non-owning

	closed bool
}

// NewService creates a coordinator. Surfaces are created lazily on
// first access; the strip surface begins loading its tokenized URL
// and the story surface its fixed URL at that point.
func NewService(cfg Config, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	s := &Service{
		cfg:   cfg,
		log:   opts.Logger.Named("strip"),
		queue: dispatch.NewQueue(),
		track: tracker.New(opts.Logger),
	}

	if opts.Factory != nil {
		s.factory = opts.Factory
	} else {
		cookies := surface.NewCookieStore()
		adapter := &lifecycleAdapter{svc: s, cookies: cookies}
		s.factory = func(name string) ContentSurface {
			return surface.New(surface.Options{
				Name:        name,
				Host:        s.queue,
				Cookies:     cookies,
				Delegate:    adapter,
				Logger:      opts.Logger,
				Client:      opts.Client,
				PageTimeout: opts.PageTimeout,
			})
		}
	}
	return s
}

// Strip returns the strip surface, creating and loading it on first
// access. The host attaches it into its view hierarchy.
func (s *Service) Strip() ContentSurface {
	s.stripOnce.Do(func() {
		surf := s.factory(RoleStrip)
		surf.RegisterChannel(ProxyChannel, func(_, message string) {
			s.handleMessage(surf, message)
		})
		surf.Navigate(s.cfg.StripURL())

		s.mu.Lock()
		s.strip = surf
		s.mu.Unlock()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strip
}

// Story returns the story surface, creating and loading it on first
// access. Besides the proxy channel it listens on the two host
// trigger channels.
func (s *Service) Story() ContentSurface {
	s.storyOnce.Do(func() {
		surf := s.factory(RoleStory)
		surf.RegisterChannel(ProxyChannel, func(_, message string) {
			s.handleMessage(surf, message)
		})
		surf.RegisterChannel(ShowChannel, func(_, _ string) {
			s.evaluateTrigger(true)
		})
		surf.RegisterChannel(HideChannel, func(_, _ string) {
			s.evaluateTrigger(false)
		})
		surf.Navigate(s.cfg.StoryURL())

		s.mu.Lock()
		s.story = surf
		s.mu.Unlock()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.story
}

// SetDelegate installs the host notification target.
func (s *Service) SetDelegate(d Delegate) {
	s.queue.Post(func() { s.delegate = d })
}

// SetDataSource installs the host script supplier.
func (s *Service) SetDataSource(ds DataSource) {
	s.queue.Post(func() { s.dataSource = ds })
}

// SetScrollInsets sets the inset adjustment added to reported unit
// heights.
func (s *Service) SetScrollInsets(insets float64) {
	s.queue.Post(func() { s.insets = insets })
}

// ShowStory evaluates the host-supplied show script against the story
// surface.
func (s *Service) ShowStory() {
	s.queue.Post(func() { s.evaluateTrigger(true) })
}

// HideStory evaluates the host-supplied hide script against the story
// surface.
func (s *Service) HideStory() {
	s.queue.Post(func() { s.evaluateTrigger(false) })
}

// handleMessage classifies one inbound message by origin role and
// tag, mutates the loading state, then runs the generic proxy step.
// Runs on the dispatch queue; the raw surface handles are never read
// here, only the once-guarded accessors.
func (s *Service) handleMessage(origin ContentSurface, message string) {
	if s.closed {
		return
	}
	s.log.Debug("message received",
		zap.String("surface", origin.Name()),
		zap.String("message", message))

	switch origin.Name() {
	case RoleStrip:
		switch {
		case strings.Contains(message, tagLoaded):
			s.handleLoaded(message)
		case strings.Contains(message, tagInitial):
			s.state.InitialMessage = &message
		case strings.Contains(message, tagOpen):
			if s.state.IsReady {
				s.track.Send(message, s.Story(), nil)
				s.notifyDisplayStory()
			} else {
				s.state.OpenUnitMessage = &message
			}
			// open never falls through to the proxy step
			return
		}
	case RoleStory:
		switch {
		case strings.Contains(message, tagReady):
			s.handleReady()
		case strings.Contains(message, tagNext):
			s.state.InitialMessage = nil
		case strings.Contains(message, tagOff):
			s.notifyHideStory()
		}
	}

	s.proxy(origin, message)
}

// handleLoaded attaches the story surface alongside the strip and
// records the negotiated height.
func (s *Service) handleLoaded(message string) {
	if story := s.Story(); !story.Attached() {
		story.Attach()
	}
	s.state.IsLoaded = true

	if height, ok := parseHeight(message); ok {
		s.state.Height = height + s.insets
	}
}

// handleReady marks the story surface interactive, reports the current
// height, and flushes a deferred open request.
func (s *Service) handleReady() {
	if s.state.IsReady {
		return
	}
	s.state.IsReady = true

	if s.delegate != nil {
		s.delegate.OnUnitReady(s.state.Height)
	}

	if s.state.OpenUnitMessage != nil {
		pending := *s.state.OpenUnitMessage
		s.state.OpenUnitMessage = nil
		s.track.Send(pending, s.Story(), nil)
		s.notifyDisplayStory()
	}
}

// proxy forwards the raw message to the opposite surface, subject to
// dedup.
func (s *Service) proxy(origin ContentSurface, message string) {
	var target ContentSurface
	switch origin.Name() {
	case RoleStrip:
		target = s.Story()
	case RoleStory:
		target = s.Strip()
	default:
		return
	}

	if !s.track.CanSend(message, target) {
		s.log.Debug("duplicate message suppressed",
			zap.String("surface", target.Name()))
		return
	}
	s.track.Send(message, target, nil)
}

// flushInitialMessage sends a pending handoff message to the story
// surface. The slot clears regardless of delivery outcome.
func (s *Service) flushInitialMessage() {
	if s.closed || s.state.InitialMessage == nil {
		return
	}
	pending := *s.state.InitialMessage
	s.state.InitialMessage = nil
	s.track.Send(pending, s.Story(), nil)
}

// evaluateTrigger runs the host's show or hide script on the story
// surface. Missing data source or empty script is a no-op.
func (s *Service) evaluateTrigger(show bool) {
	if s.closed || s.dataSource == nil {
		return
	}

	var script string
	if show {
		script = s.dataSource.ShowStoryScript()
	} else {
		script = s.dataSource.HideStoryScript()
	}
	if script == "" {
		return
	}
	s.track.Evaluate(script, s.Story(), nil)
}

func (s *Service) notifyDisplayStory() {
	if s.delegate != nil {
		s.delegate.OnDisplayStory()
	}
}

func (s *Service) notifyHideStory() {
	if s.delegate != nil {
		s.delegate.OnHideStory()
	}
}

// Close unregisters every message channel from both surfaces and
// stops the dispatch queue after draining it. Required before the
// surfaces are released, or the content engines keep dangling handler
// references.
func (s *Service) Close() {
	s.queue.Post(func() {
		if s.closed {
			return
		}
		s.closed = true

		s.mu.Lock()
		strip, story := s.strip, s.story
		s.mu.Unlock()

		if strip != nil {
			strip.UnregisterChannel(ProxyChannel)
			strip.Close()
		}
		if story != nil {
			story.UnregisterChannel(ProxyChannel)
			story.UnregisterChannel(ShowChannel)
			story.UnregisterChannel(HideChannel)
			story.Close()
		}
	})
	s.queue.Close()
}

// parseHeight decodes the JSON body carried after the loaded tag and
// extracts its numeric-string height field.
func parseHeight(message string) (float64, bool) {
	idx := strings.Index(message, "{")
	if idx < 0 {
		return 0, false
	}

	var body struct {
		Height string `json:"height"`
	}
	if err := json.Unmarshal([]byte(message[idx:]), &body); err != nil {
		return 0, false
	}

	height, err := strconv.ParseFloat(body.Height, 64)
	if err != nil {
		return 0, false
	}
	return height, true
}
