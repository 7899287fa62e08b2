package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/mbeoliero/convsync/internal/config"
	"github.com/mbeoliero/convsync/pkg/constant"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/kit/log"
	"github.com/nats-io/nats.go"
)

// NatsSource reads events from a per-user NATS subject and publishes commands on
// the user's command subject
type NatsSource struct {
	cfg    config.TransportConfig
	selfId string

	mu          sync.RWMutex
	conn        *nats.Conn
	onReconnect ReconnectFunc
}

// NewNatsSource creates a NatsSource
func NewNatsSource(cfg config.TransportConfig, selfId string) *NatsSource {
	return &NatsSource{cfg: cfg, selfId: selfId}
}

// EventsSubject returns the subject events are read from
func (s *NatsSource) EventsSubject() string {
	if s.cfg.Subject != "" {
		return s.cfg.Subject
	}
	return constant.BuildEventsSubject(s.selfId)
}

// Run subscribes and delivers events into sink until ctx is cancelled or the client
// gives up reconnecting. An unreachable server at startup is retried like a dropped
// connection.
func (s *NatsSource) Run(ctx context.Context, sink Sink) error {
	closed := make(chan struct{})
	opts := []nats.Option{
		nats.Name("convsync-" + s.selfId),
		nats.MaxReconnects(s.cfg.MaxReconnects),
		nats.ReconnectWait(s.cfg.ReconnectWait),
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.CtxInfo(ctx, "transport connected: kind=nats, url=%s", nc.ConnectedUrl())
			s.reconnected(ctx)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.CtxWarn(ctx, "transport disconnected: kind=nats, error=%v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.CtxInfo(ctx, "transport reconnected: kind=nats, url=%s", nc.ConnectedUrl())
			s.reconnected(ctx)
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			close(closed)
		}),
	}

	conn, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		return errcode.ErrConnClosed.Wrap(err)
	}
	s.setConn(conn)
	defer func() {
		s.setConn(nil)
		conn.Close()
	}()

	subject := s.EventsSubject()
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		deliver(ctx, msg.Data, sink)
	})
	if err != nil {
		return errcode.ErrConnClosed.Wrap(err)
	}
	log.CtxInfo(ctx, "transport started: kind=nats, url=%s, subject=%s, connected=%t", s.cfg.URL, subject, conn.IsConnected())

	select {
	case <-ctx.Done():
	case <-closed:
		return errcode.ErrConnClosed.Wrap(fmt.Errorf("nats connection closed: url=%s", s.cfg.URL))
	}
	if err := sub.Unsubscribe(); err != nil {
		log.CtxDebug(ctx, "unsubscribe failed: subject=%s, error=%v", subject, err)
	}
	return nil
}

// Join publishes the joining frame on the command subject
func (s *NatsSource) Join(ctx context.Context, conversationId string) error {
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
	if err := conn.Publish(constant.BuildCommandsSubject(s.selfId), frame); err != nil {
		return errcode.ErrConnClosed.Wrap(err)
	}
	log.CtxDebug(ctx, "joining sent: conversation_id=%s", conversationId)
	return nil
}

// OnReconnect sets the callback run after the client regains the server
func (s *NatsSource) OnReconnect(fn ReconnectFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReconnect = fn
}

func (s *NatsSource) reconnected(ctx context.Context) {
	s.mu.RLock()
	fn := s.onReconnect
	s.mu.RUnlock()
	if fn != nil {
		fn(ctx)
	}
}

func (s *NatsSource) setConn(conn *nats.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}
