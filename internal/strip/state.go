package strip

// LoadingState tracks the load/ready handshake between the surfaces.
// Owned exclusively by the coordinator's dispatch queue.
type LoadingState struct {
	// IsLoaded is set once the strip surface reports its loaded event.
	IsLoaded bool

	// Height is the last negotiated content height, unit height plus
	// the scroll inset adjustment. Valid only after a loaded event
	// carrying a parsable height.
	Height float64

	// IsReady is set once the story surface reports isReady.
	IsReady bool

	// InitialMessage holds a handoff message captured before the story
	// surface finished its first navigation. One slot, overwritten.
	InitialMessage *string

	// OpenUnitMessage holds an open request that arrived before the
	// story surface was ready. One slot, overwritten.
	OpenUnitMessage *string
}
