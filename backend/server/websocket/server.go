package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/adwski/liveide-collab/backend/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	defaultWebsocketReadBufferSize     = 10000
	defaultWebsocketWriteBufferSize    = 10000
	defaultWebSocketMaxMessageSize     = 1 << 20
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second
	defaultOutboundQueueSize           = 256

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 5 * time.Second
	defaultPongWait     = 7 * time.Second

	// IdentityParam carries the identity in the handshake query.
	IdentityParam = "username"
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	SignalingService interface {
		Connect(ctx context.Context, conn model.ConnID, identity model.Identity, wire model.Wire)
		Disconnect(conn model.ConnID)
		Handle(ctx context.Context, conn model.ConnID, env model.Envelope) error
	}

	Config struct {
		Logger           *zerolog.Logger
		SignalingService SignalingService
		ListenAddr       string
		AllowedOrigins   []string
		OutboundQueue    int
	}

	Server struct {
		svc       SignalingService
		ws        *websocket.Upgrader
		queueSize int
		*http.Server

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	queue := cfg.OutboundQueue
	if queue <= 0 {
		queue = defaultOutboundQueueSize
	}
	srv := &Server{
		logger:    cfg.Logger.With().Str("component", "websocket-server").Logger(),
		svc:       cfg.SignalingService,
		queueSize: queue,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      checkOrigin(cfg.AllowedOrigins),
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /socket", srv.signal)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	errSrv := make(chan error)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-errSrv:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

func (srv *Server) signal(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get(IdentityParam)

	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already replied
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	wire := model.NewWire(srv.queueSize)
	logger := srv.logger.With().
		Str("conn", connID).
		Str("identity", identity).
		Logger()

	srv.svc.Connect(r.Context(), connID, identity, wire)
	logger.Debug().Msg("signaling session created")

	ctx, cancel := context.WithCancel(context.Background()) // long-living wire context
	go srv.handleWSConn(ctx, cancel, conn, connID, wire, &logger)
}

func (srv *Server) handleWSConn(
	ctx context.Context,
	cancel context.CancelFunc,
	conn *websocket.Conn,
	connID model.ConnID,
	wire model.Wire,
	logger *zerolog.Logger,
) {
	wg := &sync.WaitGroup{}

	wg.Add(2)
	go func() {
		srv.webSocketReceiver(ctx, wg, conn, connID, logger)
		cancel()
	}()
	go func() {
		webSocketSender(ctx, wg, conn, wire.TX, logger)
		cancel()
	}()

	wg.Wait()
	webSocketCloser(conn, logger)
	srv.svc.Disconnect(connID)
	logger.Debug().Msg("signaling session ended")
}

func webSocketSender(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	tx <-chan model.Event,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
				break SendLoop
			}
			logger.Trace().Msg("ping sent")

		case msg, ok := <-tx:
			if !ok {
				break SendLoop
			}

			b, wsErr := json.Marshal(&msg)
			if wsErr != nil {
				logger.Error().Err(wsErr).Str("type", msg.Type).Msg("failed to marshall outgoing message")
				continue
			}

			wsErr = conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.TextMessage, b)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to write outgoing message")
				break SendLoop
			}
		}
	}
}

func (srv *Server) webSocketReceiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	connID model.ConnID,
	logger *zerolog.Logger,
) {
	defer wg.Done()

	conn.SetReadLimit(defaultWebSocketMaxMessageSize)
	readDeadLineFunc := func(deadline time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	}
	conn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(defaultPongWait)
	})
	err := readDeadLineFunc(defaultPongWait)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

RecvLoop:
	for {
		select {
		case <-ctx.Done():
			break RecvLoop
		default:
			_, msg, wsErr := conn.ReadMessage()
			if wsErr != nil {
				if websocket.IsCloseError(wsErr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway) {
					logger.Debug().Err(wsErr).Msg("connection closed")
				} else {
					logger.Warn().Err(wsErr).Msg("unexpected error during receive")
				}
				break RecvLoop
			}

			var env model.Envelope
			if wsErr = json.Unmarshal(msg, &env); wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to unmarshall incoming message")
				continue
			}
			if wsErr = srv.svc.Handle(ctx, connID, env); wsErr != nil {
				logger.Warn().Err(wsErr).Str("type", env.Type).Msg("incoming message ignored")
			}
		}
	}
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to set websocket write deadline during closing")
	} else {
		wsErr = conn.WriteMessage(websocket.CloseMessage, []byte{})
		if wsErr != nil && !errors.Is(wsErr, websocket.ErrCloseSent) {
			logger.Debug().Err(wsErr).Msg("failed to send close message")
		}
	}
	wsErr = conn.Close()
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to close websocket connection")
	}
}
