package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/adwski/liveide-collab/backend/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultWriteDeadline = 5 * time.Second
	defaultCloseDeadline = 2 * time.Second
)

var ErrDial = errors.New("unable to connect")

// Conn drives a Handler over a websocket session.
type Conn struct {
	*Handler

	ws     *websocket.Conn
	wmx    *sync.Mutex
	logger zerolog.Logger
}

// Dial connects to the signaling endpoint as cfg.Identity and requests
// the roster. Call Run to start applying server events.
func Dial(ctx context.Context, endpoint string, cfg Config) (*Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Join(ErrDial, err)
	}
	q := u.Query()
	q.Set("username", cfg.Identity)
	u.RawQuery = q.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Join(ErrDial, err)
	}

	h := NewHandler(cfg)
	c := &Conn{
		Handler: h,
		ws:      ws,
		wmx:     &sync.Mutex{},
		logger:  h.logger,
	}
	h.setSender(c)

	if err = h.RequestUsers(); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return c, nil
}

// Send writes one event to the server.
func (c *Conn) Send(ev model.Event) error {
	c.wmx.Lock()
	defer c.wmx.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(defaultWriteDeadline)); err != nil {
		return err
	}
	return c.ws.WriteJSON(&ev)
}

// Run reads server events until the connection closes or ctx is done.
func (c *Conn) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var env model.Envelope
		if err = json.Unmarshal(msg, &env); err != nil {
			c.logger.Error().Err(err).Msg("failed to unmarshall incoming message")
			continue
		}
		if err = c.Handle(env); err != nil {
			c.logger.Warn().Err(err).Str("type", env.Type).Msg("incoming message ignored")
		}
	}
}

// Close sends a close frame and drops the connection.
func (c *Conn) Close() error {
	c.wmx.Lock()
	err := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(defaultCloseDeadline))
	c.wmx.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug().Err(err).Msg("failed to send close message")
	}
	return c.ws.Close()
}
