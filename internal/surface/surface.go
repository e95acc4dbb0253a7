package surface

import (
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glimmerlab/strip/internal/dispatch"
	"github.com/glimmerlab/strip/internal/logging"
)

// Surface is one embedded content renderer. The widget owns two of
// them, "strip" and "story", sharing a cookie store and a host queue.
type Surface struct {
	id   string
	name string
	log  *logging.Logger

	host  *dispatch.Queue // coordinator's serialized context
	evalQ *dispatch.Queue // owns the runtime

	vm       *goja.Runtime
	handlers *goja.Object

	client      *resty.Client
	cookies     *CookieStore
	delegate    NavigationDelegate
	pageTimeout time.Duration

	mu       sync.Mutex
	channels map[string]*ChannelAdapter
	attached bool
	url      string
	title    string
}

// Options configures a new surface.
type Options struct {
	Name        string
	Host        *dispatch.Queue
	Cookies     *CookieStore
	Delegate    NavigationDelegate
	Logger      *logging.Logger
	Client      *resty.Client
	PageTimeout time.Duration
}

// defaultFetchTimeout bounds page fetches on the default client. A
// hung fetch would otherwise wedge the evaluation goroutine and make
// Close wait forever.
const defaultFetchTimeout = 30 * time.Second

// New creates a surface with a fresh runtime.
func New(opts Options) *Surface {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Client == nil {
		opts.Client = resty.New().SetTimeout(defaultFetchTimeout)
	}
	if opts.Cookies == nil {
		opts.Cookies = NewCookieStore()
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 5 * time.Second
	}

	s := &Surface{
		id:          uuid.NewString(),
		name:        opts.Name,
		log:         opts.Logger.Named(opts.Name),
		host:        opts.Host,
		evalQ:       dispatch.NewQueue(),
		vm:          goja.New(),
		client:      opts.Client,
		cookies:     opts.Cookies,
		delegate:    opts.Delegate,
		pageTimeout: opts.PageTimeout,
		channels:    make(map[string]*ChannelAdapter),
	}
	s.setupGlobals()
	return s
}

// ID returns the surface's identity key.
func (s *Surface) ID() string { return s.id }

// Name returns "strip" or "story".
func (s *Surface) Name() string { return s.name }

// setupGlobals configures the runtime's global scope.
func (s *Surface) setupGlobals() {
	// Neutralize module-system globals
	s.vm.Set("require", goja.Undefined())
	s.vm.Set("process", goja.Undefined())
	s.vm.Set("module", goja.Undefined())
	s.vm.Set("exports", goja.Undefined())

	// Pages install their message entry point on window
	s.vm.Set("window", s.vm.NewObject())

	// Timers are no-ops
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	s.vm.Set("setTimeout", noop)
	s.vm.Set("setInterval", noop)

	console := s.vm.NewObject()
	console.Set("log", s.makeConsoleFunc("log"))
	console.Set("warn", s.makeConsoleFunc("warn"))
	console.Set("error", s.makeConsoleFunc("error"))
	console.Set("info", s.makeConsoleFunc("info"))
	s.vm.Set("console", console)

	s.handlers = s.vm.NewObject()
	s.vm.Set("messageHandlers", s.handlers)
}

// makeConsoleFunc routes page console output into the surface logger.
func (s *Surface) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}

		switch level {
		case "warn":
			s.log.Warn(msg, zap.String("source", "console"))
		case "error":
			s.log.Error(msg, zap.String("source", "console"))
		default:
			s.log.Debug(msg, zap.String("source", "console"))
		}
		return goja.Undefined()
	}
}

// RegisterChannel installs a named inbound message route. Page scripts
// deliver to it via messageHandlers.<name>.postMessage(str); each
// delivery is posted to the host queue. Non-string payloads are
// silently dropped.
func (s *Surface) RegisterChannel(name string, fn func(channel, message string)) {
	adapter := newChannelAdapter(name, func(channel, message string) {
		s.host.Post(func() { fn(channel, message) })
	})

	s.mu.Lock()
	if prev, ok := s.channels[name]; ok {
		prev.Detach()
	}
	s.channels[name] = adapter
	s.mu.Unlock()

	s.evalQ.Post(func() {
		ch := s.vm.NewObject()
		ch.Set("postMessage", func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return goja.Undefined()
			}
			message, ok := call.Arguments[0].Export().(string)
			if !ok {
				return goja.Undefined()
			}
			adapter.Deliver(message)
			return goja.Undefined()
		})
		s.handlers.Set(name, ch)
	})
}

// UnregisterChannel removes a channel. The adapter is detached
// immediately, so deliveries racing the runtime-side removal drop.
// Idempotent.
func (s *Surface) UnregisterChannel(name string) {
	s.mu.Lock()
	adapter, ok := s.channels[name]
	if ok {
		delete(s.channels, name)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	adapter.Detach()
	s.evalQ.Post(func() {
		s.handlers.Set(name, goja.Undefined())
	})
}

// Evaluate runs a script asynchronously. onComplete, if non-nil, is
// posted to the host queue once the runtime replies. There is no
// cancellation; results arriving after teardown are discarded.
func (s *Surface) Evaluate(script string, onComplete func(error)) {
	err := s.evalQ.Post(func() {
		_, runErr := s.vm.RunString(script)
		if runErr != nil {
			s.log.Debug("script evaluation failed", zap.Error(runErr))
		}
		if onComplete != nil {
			s.host.Post(func() { onComplete(runErr) })
		}
	})
	if err != nil && onComplete != nil {
		s.host.Post(func() { onComplete(err) })
	}
}

// Attach marks the surface as inserted into the host view hierarchy.
// No-op if already attached.
func (s *Surface) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return
	}
	s.attached = true
	s.log.Info("surface attached")
}

// Detach removes the surface from the host view hierarchy.
func (s *Surface) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = false
}

// Attached reports whether the surface is in the view hierarchy.
func (s *Surface) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// URL returns the last successfully loaded URL.
func (s *Surface) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Title returns the title of the last loaded page.
func (s *Surface) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Close detaches every channel and stops the evaluation goroutine
// after draining queued work.
func (s *Surface) Close() {
	s.mu.Lock()
	for name, adapter := range s.channels {
		adapter.Detach()
		delete(s.channels, name)
	}
	s.mu.Unlock()

	s.evalQ.Close()
}
