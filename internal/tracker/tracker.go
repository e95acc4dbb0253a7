// Package tracker deduplicates and delivers string messages to content
// surfaces over the embedded scripting bridge.
package tracker

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/glimmerlab/strip/internal/logging"
)

// Every proxied message reaches the page through one fixed entry point.
const dispatchTemplate = "window.handleMessage(%s);"

// Target is the destination a message can be delivered to.
type Target interface {
	ID() string
	Evaluate(script string, onComplete func(error))
}

// Tracker remembers the last message sent to each target so redundant
// broadcast-style deliveries can be suppressed. It is owned by the
// coordinator's serialized context and is not safe for concurrent use.
type Tracker struct {
	log  *logging.Logger
	last map[string]string
}

// New creates a tracker.
func New(log *logging.Logger) *Tracker {
	if log == nil {
		log = logging.NewNop()
	}
	return &Tracker{
		log:  log,
		last: make(map[string]string),
	}
}

// CanSend reports whether message differs from the last message sent
// to target.
func (t *Tracker) CanSend(message string, target Target) bool {
	return t.last[target.ID()] != message
}

// Send records message as the last value sent to target, then wraps it
// in the dispatch expression and evaluates it asynchronously. The
// cache is updated before the evaluation resolves, so an identical
// message arriving mid-flight still deduplicates against this one.
func (t *Tracker) Send(message string, target Target, onComplete func(success bool)) {
	t.last[target.ID()] = message

	script := fmt.Sprintf(dispatchTemplate, quote(message))
	target.Evaluate(script, func(err error) {
		if err != nil {
			t.log.Debug("message delivery failed", zap.Error(err))
		}
		if onComplete != nil {
			onComplete(err == nil)
		}
	})
}

// Evaluate runs an opaque host-supplied script against target, with no
// dedup and no cache effect.
func (t *Tracker) Evaluate(script string, target Target, onComplete func(success bool)) {
	target.Evaluate(script, func(err error) {
		if err != nil {
			t.log.Debug("script trigger failed", zap.Error(err))
		}
		if onComplete != nil {
			onComplete(err == nil)
		}
	})
}

// quote embeds a message as a single JavaScript string literal.
func quote(message string) string {
	b, err := json.Marshal(message)
	if err != nil {
		return `""`
	}
	return string(b)
}
