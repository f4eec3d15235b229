package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type Hub struct {
	// 每个用户可以同时开多个向导连接（多标签页、断线重连）
	sessions map[int64]map[*Session]struct{}
	mu       sync.RWMutex
}

// Session 一条向导 WebSocket 连接
type Session struct {
	UserID int64
	Conn   *websocket.Conn
	mu     sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[int64]map[*Session]struct{}),
	}
}

// Send 序列化并写出一条消息
func (s *Session) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal ws message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) Register(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[session.UserID] == nil {
		h.sessions[session.UserID] = make(map[*Session]struct{})
	}
	h.sessions[session.UserID][session] = struct{}{}

	total := 0
	for _, conns := range h.sessions {
		total += len(conns)
	}
	log.Printf("User %d wizard session opened, user_conns: %d, total: %d", session.UserID, len(h.sessions[session.UserID]), total)
}

func (h *Hub) Unregister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.sessions[session.UserID]; ok {
		delete(conns, session)
		if len(conns) == 0 {
			delete(h.sessions, session.UserID)
		}
	}
	log.Printf("User %d wizard session closed", session.UserID)
}

// SendToUser 向指定用户的所有连接发送消息，多标签页同时收到
func (h *Hub) SendToUser(userID int64, msg *Message) error {
	h.mu.RLock()
	conns, ok := h.sessions[userID]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	// 复制一份引用，避免写出时长时间持锁
	sessions := make([]*Session, 0, len(conns))
	for s := range conns {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.Send(msg); err != nil {
			log.Printf("SendToUser write error for user %d: %v", userID, err)
		}
	}
	return nil
}

// IsOnline 检查用户是否有在线的向导连接
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.sessions[userID]
	return ok && len(conns) > 0
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.sessions {
		total += len(conns)
	}
	return total
}
