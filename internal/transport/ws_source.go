package transport

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbeoliero/convsync/internal/config"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// Query parameter keys sent on dial
const (
	QueryToken  = "token"
	QuerySendId = "send_id"
)

// WsSource reads events from the IM server over a websocket, reconnecting when the
// connection drops. Nothing is refetched after a reconnect.
type WsSource struct {
	cfg    config.TransportConfig
	selfId string
	token  string
	dialer *websocket.Dialer

	mu          sync.RWMutex
	conn        Conn
	onReconnect ReconnectFunc
}

// NewWsSource creates a WsSource
func NewWsSource(cfg config.TransportConfig, selfId, token string) *WsSource {
	return &WsSource{
		cfg:    cfg,
		selfId: selfId,
		token:  token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.WriteWait,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// Run dials and streams frames into sink until ctx is cancelled or reconnects are exhausted
func (s *WsSource) Run(ctx context.Context, sink Sink) error {
	failures := 0
	connected := false
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if s.cfg.MaxReconnects >= 0 && failures > s.cfg.MaxReconnects {
				return errcode.ErrConnClosed.Wrap(err)
			}
			log.CtxWarn(ctx, "dial failed: url=%s, attempt=%d, error=%v", s.cfg.URL, failures, err)
			if !s.wait(ctx) {
				return nil
			}
			continue
		}

		failures = 0
		log.CtxInfo(ctx, "transport connected: kind=ws, url=%s, user_id=%s", s.cfg.URL, s.selfId)
		if connected {
			s.reconnected(ctx)
		}
		connected = true
		err = s.readLoop(ctx, conn, sink)
		if ctx.Err() != nil {
			return nil
		}
		log.CtxWarn(ctx, "transport disconnected: url=%s, error=%v", s.cfg.URL, err)
		if !s.wait(ctx) {
			return nil
		}
	}
}

// Join sends the joining frame on the live connection
func (s *WsSource) Join(ctx context.Context, conversationId string) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errcode.ErrConnClosed
	}

	frame, err := EncodeJoining(conversationId)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(frame); err != nil {
		return err
	}
	log.CtxDebug(ctx, "joining sent: conversation_id=%s", conversationId)
	return nil
}

func (s *WsSource) dial(ctx context.Context) (*wsConn, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, errcode.ErrInvalidConfig.Wrap(err)
	}
	q := u.Query()
	if s.token != "" {
		q.Set(QueryToken, s.token)
	}
	q.Set(QuerySendId, s.selfId)
	u.RawQuery = q.Encode()

	raw, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return newWsConn(raw, s.cfg.MaxMessageSize, s.cfg.WriteWait, s.cfg.PongWait, s.cfg.PingPeriod), nil
}

// readLoop delivers frames until the connection fails or ctx is cancelled
func (s *WsSource) readLoop(ctx context.Context, conn *wsConn, sink Sink) (err error) {
	s.setConn(conn)
	done := make(chan struct{})
	defer func() {
		if r := recover(); r != nil {
			log.CtxError(ctx, "transport read loop panic: error=%v", r)
			err = errcode.ErrInternalServer
		}
		close(done)
		s.setConn(nil)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			// unblock ReadMessage
			_ = conn.conn.Close()
		case <-done:
		}
	}()

	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		deliver(ctx, frame, sink)
	}
}

// OnReconnect sets the callback run before reading from a re-established connection
func (s *WsSource) OnReconnect(fn ReconnectFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReconnect = fn
}

func (s *WsSource) reconnected(ctx context.Context) {
	s.mu.RLock()
	fn := s.onReconnect
	s.mu.RUnlock()
	if fn != nil {
		fn(ctx)
	}
}

func (s *WsSource) setConn(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

func (s *WsSource) wait(ctx context.Context) bool {
	t := time.NewTimer(s.cfg.ReconnectWait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
