package blocksync

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rFoxen/BlueskyModerationExtension-sub001/control/api"
)

var upgrader = websocket.Upgrader{
	// the control server only listens on loopback; the extension's origin is
	// an extension scheme the default check would reject
	CheckOrigin: func(r *http.Request) bool { return true },
}

const eventWriteTimeout = 10 * time.Second

// handleEvents streams engine events to the extension front end as JSON
// envelopes over a websocket. A slow consumer gets dropped rather than
// blocking the emitters.
func (g *Engine) handleEvents(e echo.Context) error {
	conn, err := upgrader.Upgrade(e.Response(), e.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	events := make(chan Event, 64)
	unsubscribe := g.Subscribe(func(ev Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				g.logger.Error("failed to marshal event", "type", ev.EventType(), "error", err)
				continue
			}
			env := api.EventEnvelope{
				Type:    ev.EventType(),
				Payload: payload,
			}
			conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(env); err != nil {
				return nil
			}
		}
	}
}
