package handler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

const (
	viewWriteWait  = 10 * time.Second
	viewPongWait   = 60 * time.Second
	viewPingPeriod = (viewPongWait * 9) / 10
	viewMaxMsgSize = 4096
	viewBufferSize = 64
)

// ViewFrame is one message pushed to a subscribed UI
type ViewFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// viewConn is a UI websocket with a single writer goroutine
type viewConn struct {
	conn      *websocket.Conn
	writeChan chan []byte
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
	done      chan struct{}
}

func newViewConn(conn *websocket.Conn) *viewConn {
	c := &viewConn{
		conn:      conn,
		writeChan: make(chan []byte, viewBufferSize),
		done:      make(chan struct{}),
	}

	conn.SetReadLimit(viewMaxMsgSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(viewPongWait))
	})

	go c.writeLoop()
	return c
}

func (c *viewConn) writeLoop() {
	ticker := time.NewTicker(viewPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case message, ok := <-c.writeChan:
			_ = c.conn.SetWriteDeadline(time.Now().Add(viewWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("view write error: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(viewWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("view ping error: %v", err)
				return
			}
		}
	}
}

// push queues a frame. A UI that cannot keep up is disconnected rather than served stale data.
func (c *viewConn) push(event string, data interface{}) error {
	message, err := json.Marshal(&ViewFrame{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	if c.closed {
		c.writeMu.Unlock()
		return errcode.ErrConnClosed
	}
	select {
	case c.writeChan <- message:
		c.writeMu.Unlock()
		return nil
	default:
		c.writeMu.Unlock()
		_ = c.Close()
		return errcode.ErrWriteChannelFull
	}
}

// readUntilClosed discards client frames and returns when the client goes away
func (c *viewConn) readUntilClosed() {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(viewPongWait))
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close flushes queued frames, sends a close frame and waits for the writer to stop
func (c *viewConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		close(c.writeChan)
		c.writeMu.Unlock()
	})
	return nil
}

func (c *viewConn) wait() {
	<-c.done
}
