package surface

import "sync"

// ChannelAdapter forwards messages for one named channel to a handler
// it does not own. Detaching drops the handler so a delivery from a
// still-running page script cannot reach a destroyed coordinator.
type ChannelAdapter struct {
	name string

	mu sync.Mutex
	fn func(channel, message string)
}

func newChannelAdapter(name string, fn func(channel, message string)) *ChannelAdapter {
	return &ChannelAdapter{name: name, fn: fn}
}

// Name returns the channel name this adapter serves.
func (a *ChannelAdapter) Name() string {
	return a.name
}

// Deliver invokes the handler with the message, or drops it if the
// adapter has been detached.
func (a *ChannelAdapter) Deliver(message string) {
	a.mu.Lock()
	fn := a.fn
	a.mu.Unlock()

	if fn != nil {
		fn(a.name, message)
	}
}

// Detach severs the handler reference. Idempotent.
func (a *ChannelAdapter) Detach() {
	a.mu.Lock()
	a.fn = nil
	a.mu.Unlock()
}
