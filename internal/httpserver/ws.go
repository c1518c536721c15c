// internal/httpserver/ws.go
//
// GET /game/{id}/ws streams snapshots of one session: the current state on
// connect, then every change (reveals, settled comparisons, clock ticks).
// The stream is read-only; commands still go through the POST endpoints.

package httpserver

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 5 * time.Second

// originPatterns allows the configured client origin to open streams.
func (s *Server) originPatterns() []string {
	u, err := url.Parse(s.cfg.ClientOrigin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		log.Debug().Err(err).Str("gameId", sess.ID).Msg("ws accept")
		return
	}
	defer c.CloseNow()

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	// Discard client frames; the returned context ends when the peer goes away.
	ctx := c.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				c.Close(websocket.StatusGoingAway, "game closed")
				return
			}
			if err := writeJSON(ctx, c, snap); err != nil {
				log.Debug().Err(err).Str("gameId", sess.ID).Msg("ws write")
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, c *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, v)
}
