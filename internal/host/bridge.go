// Package host bridges coordinator notifications to a demo host UI
// over a websocket, and maps inbound host frames onto the widget's
// show/hide triggers.
package host

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/glimmerlab/strip/internal/logging"
	"github.com/glimmerlab/strip/internal/strip"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // demo host, any origin
	},
}

// Frame is one websocket message in either direction.
type Frame struct {
	Type      string  `json:"type"`
	Height    float64 `json:"height,omitempty"`
	Message   string  `json:"message,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Bridge manages websocket connections against one coordinator. The
// coordinator has a single delegate slot, so at most one connection is
// served at a time; later dials are rejected until it ends.
type Bridge struct {
	svc *strip.Service
	log *logging.Logger

	mu     sync.Mutex
	active *notifier
}

// NewBridge creates a bridge.
func NewBridge(svc *strip.Service, log *logging.Logger) *Bridge {
	if log == nil {
		log = logging.NewNop()
	}
	return &Bridge{svc: svc, log: log.Named("host")}
}

// Register installs the bridge routes.
func (b *Bridge) Register(r *gin.Engine) {
	r.GET("/healthz", b.handleHealth)
	r.GET("/ws", b.HandleConnection)
}

func (b *Bridge) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleConnection upgrades to websocket, installs a notification
// delegate for the lifetime of the connection, and processes host
// frames.
func (b *Bridge) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	notifier := newNotifier()
	b.mu.Lock()
	if b.active != nil {
		b.mu.Unlock()
		b.log.Warn("rejecting websocket connection, bridge already connected")
		conn.WriteJSON(Frame{Type: "error", Message: "bridge already connected"})
		return
	}
	b.active = notifier
	b.mu.Unlock()

	b.svc.SetDelegate(notifier)
	defer func() {
		b.mu.Lock()
		b.active = nil
		b.mu.Unlock()
		b.svc.SetDelegate(nil)
	}()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case frame := <-notifier.frames:
				if err := conn.WriteJSON(frame); err != nil {
					b.log.Debug("websocket write failed", zap.Error(err))
					return
				}
			case <-done:
				return
			}
		}
	}()

	notifier.push(Frame{Type: "connected", Timestamp: time.Now().Unix()})

	for {
		var msg Frame
		if err := conn.ReadJSON(&msg); err != nil {
			b.log.Debug("websocket read ended", zap.Error(err))
			return
		}

		switch msg.Type {
		case "show":
			b.svc.ShowStory()
		case "hide":
			b.svc.HideStory()
		case "ping":
			notifier.push(Frame{Type: "pong", Timestamp: time.Now().Unix()})
		default:
			notifier.push(Frame{Type: "error", Message: "unknown frame type"})
		}
	}
}

// notifier adapts coordinator notifications into outbound frames. A
// slow connection drops frames rather than blocking the dispatch
// queue.
type notifier struct {
	frames chan Frame
}

func newNotifier() *notifier {
	return &notifier{frames: make(chan Frame, 16)}
}

func (n *notifier) OnUnitReady(height float64) {
	n.push(Frame{Type: "unit_ready", Height: height, Timestamp: time.Now().Unix()})
}

func (n *notifier) OnDisplayStory() {
	n.push(Frame{Type: "display_story", Timestamp: time.Now().Unix()})
}

func (n *notifier) OnHideStory() {
	n.push(Frame{Type: "hide_story", Timestamp: time.Now().Unix()})
}

func (n *notifier) push(frame Frame) {
	select {
	case n.frames <- frame:
	default:
	}
}
