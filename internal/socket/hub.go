// server/internal/socket/hub.go
package socket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"eco-relais-api-server/internal/models"
)

// Hub quản lý tất cả các client WebSocket.
type Hub struct {
	// clients là một map để lưu trữ các kết nối, key là userID.
	clients map[string]*websocket.Conn
	// mu là một Mutex để đảm bảo an toàn khi truy cập map clients từ nhiều goroutine.
	mu sync.RWMutex
}

// NewHub tạo một Hub mới.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*websocket.Conn),
	}
}

// Register thêm một client mới vào Hub.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = conn
	log.Printf("WebSocket client registered: %s", userID)
}

// Unregister xóa một client khỏi Hub.
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; ok {
		delete(h.clients, userID)
		log.Printf("WebSocket client unregistered: %s", userID)
	}
}

// Send gửi một tin nhắn đến một client cụ thể.
func (h *Hub) Send(userID string, message []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.clients[userID]
	if !ok {
		// Không tìm thấy client (có thể đã offline), không coi đây là lỗi nghiêm trọng.
		return nil
	}

	return conn.WriteMessage(websocket.TextMessage, message)
}

// MissionUpdated đẩy trạng thái mới của mission cho cả requester lẫn
// partner (nếu có). Hub thỏa interface mission.Events.
func (h *Hub) MissionUpdated(m *models.Mission) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":    "mission_updated",
		"mission": m,
	})
	if err != nil {
		log.Printf("Failed to marshal mission update: %v", err)
		return
	}

	if err := h.Send(m.ClientID, payload); err != nil {
		log.Printf("Failed to push mission update to client %s: %v", m.ClientID, err)
	}
	if m.PartnerID != "" {
		if err := h.Send(m.PartnerID, payload); err != nil {
			log.Printf("Failed to push mission update to partner %s: %v", m.PartnerID, err)
		}
	}
}
