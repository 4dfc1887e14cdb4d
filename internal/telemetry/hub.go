package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var hlog = logrus.WithField("component", "stream")

const (
	subscriberBuffer = 64
	writeWait        = 5 * time.Second
)

// Hub 向控制面的 websocket 订阅方广播局事件。
// 扇出不阻塞：订阅方缓冲打满直接踢掉，慢消费者不能拖慢引擎。
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}

	upgrader websocket.Upgrader
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub 创建广播中枢。
func NewHub() *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Emit 把事件序列化后广播给全体订阅方。
func (h *Hub) Emit(ev RoundEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		hlog.Warnf("⚠️ marshal round event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- payload:
		default:
			// 缓冲满 = 消费太慢，踢掉
			delete(h.subs, s)
			close(s.send)
			hlog.Warnf("⚠️ dropping slow stream subscriber %s", s.conn.RemoteAddr())
		}
	}
}

// ServeHTTP 升级到 websocket 并订阅事件流。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.Warnf("⚠️ websocket upgrade: %v", err)
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	hlog.Infof("✅ stream subscriber connected: %s", conn.RemoteAddr())

	go s.writeLoop()
	go s.readLoop(h)
}

func (s *subscriber) writeLoop() {
	defer s.conn.Close()
	for payload := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
}

// readLoop 只为感知断连；订阅方发来的消息一律丢弃。
func (s *subscriber) readLoop(h *Hub) {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
	h.mu.Unlock()
}

// Close 断开全部订阅方。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}
