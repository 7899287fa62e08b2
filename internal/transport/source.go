package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbeoliero/convsync/internal/config"
	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/pkg/constant"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// Sink receives decoded events
type Sink interface {
	Submit(ctx context.Context, ev entity.Event) error
}

// ReconnectFunc runs after a source regains its connection. Events sent while the source
// was offline are lost, so the callback is where state gets reloaded.
type ReconnectFunc func(ctx context.Context)

// Source is the inbound event stream. It also carries the outbound joining command.
type Source interface {
	// Run streams events into sink until ctx is cancelled
	Run(ctx context.Context, sink Sink) error
	// Join announces that the user opened a conversation
	Join(ctx context.Context, conversationId string) error
	// OnReconnect sets the callback run after every reconnection; call it before Run
	OnReconnect(fn ReconnectFunc)
}

// NewSource creates the source selected by cfg.Transport.Kind
func NewSource(cfg *config.Config, token string) (Source, error) {
	switch cfg.Transport.Kind {
	case constant.TransportWebSocket:
		return NewWsSource(cfg.Transport, cfg.App.SelfId, token), nil
	case constant.TransportNATS:
		return NewNatsSource(cfg.Transport, cfg.App.SelfId), nil
	default:
		return nil, errcode.ErrInvalidConfig.Wrap(fmt.Errorf("transport kind %q", cfg.Transport.Kind))
	}
}

// deliver decodes one frame and hands it to sink. Bad frames are logged and dropped.
func deliver(ctx context.Context, frame []byte, sink Sink) {
	ev, err := Decode(frame)
	if err != nil {
		if errors.Is(err, errcode.ErrUnknownEvent) {
			log.CtxDebug(ctx, "unknown event dropped: error=%v", err)
		} else {
			log.CtxWarn(ctx, "malformed event dropped: error=%v", err)
		}
		return
	}

	if err := sink.Submit(ctx, ev); err != nil && ctx.Err() == nil {
		log.CtxWarn(ctx, "submit event failed: event=%s, conversation_id=%s, error=%v",
			entity.EventName(ev), ev.ConversationId(), err)
	}
}
