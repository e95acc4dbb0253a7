package strip

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSurface is an in-memory ContentSurface recording everything the
// coordinator does to it. Deliveries and completions run synchronously
// on the test goroutine, which stands in for the dispatch queue.
type fakeSurface struct {
	id           string
	name         string
	channels     map[string]func(channel, message string)
	evals        []string
	evalErr      error
	navigated    []string
	unregistered []string
	attached     bool
	attachCalls  int
	closed       bool
}

func newFakeSurface(name string) *fakeSurface {
	return &fakeSurface{
		id:       "fake-" + name,
		name:     name,
		channels: make(map[string]func(channel, message string)),
	}
}

func (f *fakeSurface) ID() string   { return f.id }
func (f *fakeSurface) Name() string { return f.name }

func (f *fakeSurface) RegisterChannel(name string, fn func(channel, message string)) {
	f.channels[name] = fn
}

func (f *fakeSurface) UnregisterChannel(name string) {
	if _, ok := f.channels[name]; ok {
		delete(f.channels, name)
		f.unregistered = append(f.unregistered, name)
	}
}

func (f *fakeSurface) Evaluate(script string, onComplete func(error)) {
	f.evals = append(f.evals, script)
	if onComplete != nil {
		onComplete(f.evalErr)
	}
}

func (f *fakeSurface) Navigate(rawURL string) { f.navigated = append(f.navigated, rawURL) }

func (f *fakeSurface) Attach() {
	f.attachCalls++
	f.attached = true
}

func (f *fakeSurface) Attached() bool { return f.attached }
func (f *fakeSurface) Close()         { f.closed = true }

// deliver injects a message as if a page script posted it.
func (f *fakeSurface) deliver(t *testing.T, channel, message string) {
	t.Helper()
	fn, ok := f.channels[channel]
	require.True(t, ok, "channel %q not registered on %s", channel, f.name)
	fn(channel, message)
}

type recordingDelegate struct {
	heights []float64
	display int
	hide    int
}

func (d *recordingDelegate) OnUnitReady(height float64) { d.heights = append(d.heights, height) }
func (d *recordingDelegate) OnDisplayStory()            { d.display++ }
func (d *recordingDelegate) OnHideStory()               { d.hide++ }

type scriptSource struct {
	show string
	hide string
}

func (s scriptSource) ShowStoryScript() string { return s.show }
func (s scriptSource) HideStoryScript() string { return s.hide }

func testConfig() Config {
	return Config{
		ChannelToken: "abc123",
		BundleInfo:   map[string]string{"v": "1.0"},
		BaseURL:      "https://units.example.com",
		StripPath:    "/strip/index.html",
		StoryPath:    "/story/index.html",
	}
}

func newTestService(t *testing.T) (*Service, *fakeSurface, *fakeSurface, *recordingDelegate) {
	t.Helper()

	svc := NewService(testConfig(), Options{
		Factory: func(name string) ContentSurface { return newFakeSurface(name) },
	})
	t.Cleanup(svc.Close)

	strip := svc.Strip().(*fakeSurface)
	story := svc.Story().(*fakeSurface)

	delegate := &recordingDelegate{}
	svc.SetDelegate(delegate)
	svc.queue.Flush()

	return svc, strip, story, delegate
}

// wrapped mirrors the fixed dispatch expression a proxied message is
// delivered through.
func wrapped(message string) string {
	b, _ := json.Marshal(message)
	return "window.handleMessage(" + string(b) + ");"
}

func TestSurfaceSetup(t *testing.T) {
	_, strip, story, _ := newTestService(t)

	require.Len(t, strip.navigated, 1)
	assert.Contains(t, strip.navigated[0], "token=abc123&v=1.0")

	require.Len(t, story.navigated, 1)
	assert.Equal(t, "https://units.example.com/story/index.html", story.navigated[0])

	assert.Contains(t, strip.channels, ProxyChannel)
	assert.Contains(t, story.channels, ProxyChannel)
	assert.Contains(t, story.channels, ShowChannel)
	assert.Contains(t, story.channels, HideChannel)
}

func TestProxyDedup(t *testing.T) {
	_, strip, story, _ := newTestService(t)

	strip.deliver(t, ProxyChannel, `analytics {"unit":4}`)
	strip.deliver(t, ProxyChannel, `analytics {"unit":4}`)
	require.Len(t, story.evals, 1, "identical consecutive message must be suppressed")

	strip.deliver(t, ProxyChannel, `analytics {"unit":5}`)
	require.Len(t, story.evals, 2)
	assert.Equal(t, wrapped(`analytics {"unit":4}`), story.evals[0])
	assert.Equal(t, wrapped(`analytics {"unit":5}`), story.evals[1])
}

func TestLoadedHeight(t *testing.T) {
	svc, strip, story, _ := newTestService(t)
	svc.SetScrollInsets(10)
	svc.queue.Flush()

	strip.deliver(t, ProxyChannel, `loaded {"height":"120"}`)

	assert.True(t, svc.state.IsLoaded)
	assert.Equal(t, 130.0, svc.state.Height)
	assert.True(t, story.Attached())
	assert.Equal(t, 1, story.attachCalls)

	// Unparsable height leaves the previous value; attach stays put.
	strip.deliver(t, ProxyChannel, `loaded {"height":"tall"}`)
	assert.Equal(t, 130.0, svc.state.Height)
	assert.Equal(t, 1, story.attachCalls, "attach must be idempotent")

	strip.deliver(t, ProxyChannel, `loaded nonsense`)
	assert.Equal(t, 130.0, svc.state.Height)
}

func TestOpenBeforeReady(t *testing.T) {
	svc, strip, story, delegate := newTestService(t)

	strip.deliver(t, ProxyChannel, `openUnit {"slide":2}`)
	assert.Empty(t, story.evals, "open before ready must not forward")
	require.NotNil(t, svc.state.OpenUnitMessage)

	// The slot holds exactly the last open request.
	strip.deliver(t, ProxyChannel, `openUnit {"slide":3}`)
	require.NotNil(t, svc.state.OpenUnitMessage)
	assert.Equal(t, `openUnit {"slide":3}`, *svc.state.OpenUnitMessage)
	assert.Empty(t, story.evals)
	assert.Zero(t, delegate.display)

	story.deliver(t, ProxyChannel, "isReady")

	require.Len(t, story.evals, 1, "exactly one send of the stored message")
	assert.Equal(t, wrapped(`openUnit {"slide":3}`), story.evals[0])
	assert.Nil(t, svc.state.OpenUnitMessage)
	assert.Equal(t, 1, delegate.display)
}

func TestOpenAfterReady(t *testing.T) {
	svc, strip, story, delegate := newTestService(t)

	story.deliver(t, ProxyChannel, "isReady")
	require.True(t, svc.state.IsReady)
	baseline := len(story.evals)

	strip.deliver(t, ProxyChannel, `openUnit {"slide":7}`)

	require.Len(t, story.evals, baseline+1)
	assert.Equal(t, wrapped(`openUnit {"slide":7}`), story.evals[baseline])
	assert.Equal(t, 1, delegate.display)
	assert.Nil(t, svc.state.OpenUnitMessage)
}

func TestReadyNotificationFiresOnce(t *testing.T) {
	svc, strip, story, delegate := newTestService(t)
	strip.deliver(t, ProxyChannel, `loaded {"height":"120"}`)

	story.deliver(t, ProxyChannel, "isReady")
	story.deliver(t, ProxyChannel, "isReady")

	require.Equal(t, []float64{120}, delegate.heights)
	assert.True(t, svc.state.IsReady)
}

func TestInitialMessageClearedByNext(t *testing.T) {
	svc, strip, story, _ := newTestService(t)

	strip.deliver(t, ProxyChannel, `initial {"feed":"main"}`)
	require.NotNil(t, svc.state.InitialMessage)
	assert.Equal(t, `initial {"feed":"main"}`, *svc.state.InitialMessage)

	story.deliver(t, ProxyChannel, "next")
	assert.Nil(t, svc.state.InitialMessage)
}

func TestInitialMessageFlushedOnNavigationFinish(t *testing.T) {
	svc, strip, story, _ := newTestService(t)

	strip.deliver(t, ProxyChannel, `initial {"feed":"main"}`)
	proxied := len(story.evals)

	// Delivery failure still clears the slot; the send is
	// fire-and-forget.
	story.evalErr = errors.New("engine unavailable")
	svc.flushInitialMessage()

	require.Len(t, story.evals, proxied+1)
	assert.Equal(t, wrapped(`initial {"feed":"main"}`), story.evals[proxied])
	assert.Nil(t, svc.state.InitialMessage)

	// A second finish with an empty slot sends nothing.
	svc.flushInitialMessage()
	assert.Len(t, story.evals, proxied+1)
}

func TestOffNotifiesHide(t *testing.T) {
	_, _, story, delegate := newTestService(t)

	story.deliver(t, ProxyChannel, `off {"reason":"tap"}`)
	assert.Equal(t, 1, delegate.hide)
}

func TestHostTriggers(t *testing.T) {
	svc, _, story, _ := newTestService(t)

	// No data source: triggers are no-ops.
	story.deliver(t, ShowChannel, "")
	assert.Empty(t, story.evals)

	svc.SetDataSource(scriptSource{show: "widget.show();", hide: "widget.hide();"})
	svc.queue.Flush()

	story.deliver(t, ShowChannel, "")
	story.deliver(t, HideChannel, "")

	require.Equal(t, []string{"widget.show();", "widget.hide();"}, story.evals)

	// Triggers bypass dedup entirely.
	story.deliver(t, ShowChannel, "")
	assert.Len(t, story.evals, 3)
}

func TestCloseUnregistersChannels(t *testing.T) {
	svc, strip, story, _ := newTestService(t)

	proxyFn := strip.channels[ProxyChannel]
	svc.Close()

	assert.Equal(t, []string{ProxyChannel}, strip.unregistered)
	assert.ElementsMatch(t, []string{ProxyChannel, ShowChannel, HideChannel}, story.unregistered)
	assert.True(t, strip.closed)
	assert.True(t, story.closed)

	// A delivery racing teardown must not reach the state machine.
	proxyFn(ProxyChannel, `loaded {"height":"50"}`)
	assert.False(t, svc.state.IsLoaded)

	// Closing twice is safe.
	svc.Close()
	assert.Equal(t, []string{ProxyChannel}, strip.unregistered)
}

func TestMessageDuringConcurrentSurfaceCreation(t *testing.T) {
	svc := NewService(testConfig(), Options{
		Factory: func(name string) ContentSurface { return newFakeSurface(name) },
	})
	t.Cleanup(svc.Close)

	// Only the story surface exists so far; the strip surface is
	// first-created by a second goroutine while messages arrive.
	story := svc.Story().(*fakeSurface)
	ready := story.channels[ProxyChannel]

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Strip()
	}()
	for i := 0; i < 100; i++ {
		ready(ProxyChannel, "isReady")
	}
	<-done

	assert.True(t, svc.state.IsReady)

	strip := svc.Strip().(*fakeSurface)
	require.Len(t, strip.evals, 1, "first isReady proxied, duplicates suppressed")
	assert.Equal(t, wrapped("isReady"), strip.evals[0])
}

func TestEndToEndScenario(t *testing.T) {
	svc, strip, story, delegate := newTestService(t)

	require.Contains(t, strip.navigated[0], "token=abc123&v=1.0")

	strip.deliver(t, ProxyChannel, `loaded {"height":"200"}`)
	assert.Equal(t, 200.0, svc.state.Height)
	assert.True(t, story.Attached())

	story.deliver(t, ProxyChannel, "isReady")
	require.Equal(t, []float64{200}, delegate.heights)
}
