package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jobmate/cancel_go_server/config"
	"github.com/jobmate/cancel_go_server/internal/model/dto"
	"github.com/jobmate/cancel_go_server/internal/pkg/jwt"
	"github.com/jobmate/cancel_go_server/internal/pkg/ws"
	"github.com/jobmate/cancel_go_server/internal/service"
	"github.com/jobmate/cancel_go_server/internal/wizard"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 生产环境需要验证 Origin
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WebSocketHandler struct {
	hub                 *ws.Hub
	cancellationService *service.CancellationService
	cfg                 *config.Config
}

func NewWebSocketHandler(hub *ws.Hub, cancellationService *service.CancellationService, cfg *config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub:                 hub,
		cancellationService: cancellationService,
		cfg:                 cfg,
	}
}

// wizardClientMessage 向导连接上行消息。edit 进防抖队列，flush 立即落库。
type wizardClientMessage struct {
	Type  string                 `json:"type"`
	Draft map[string]interface{} `json:"draft,omitempty"`
}

// Handle 向导长连接：接收草稿编辑做防抖自动保存，下发保存回执和取消事件
// GET /api/v1/ws?token=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	session := &ws.Session{
		UserID: userID,
		Conn:   conn,
	}
	h.hub.Register(session)

	// 每条连接各自一个防抖器，多标签页互不干扰
	debounce := time.Duration(h.cfg.Wizard.AutosaveDebounceMs) * time.Millisecond
	autosaver := wizard.NewAutosaver(debounce, func(fields map[string]interface{}) {
		h.saveDraft(session, fields)
	})

	// 建连即推一次当前进度，断线重连的前端用它恢复到正确步骤
	if detail, err := h.cancellationService.Get(userID, userID); err == nil {
		_ = session.Send(&ws.Message{Type: "wizard_state", Data: detail})
	}

	go h.readLoop(session, autosaver)
}

// authenticate 解析连接身份。优先走 token；演示模式允许用 user_id 直连。
func (h *WebSocketHandler) authenticate(c *gin.Context) (int64, bool) {
	if token := c.Query("token"); token != "" {
		claims, err := jwt.ParseToken(token, h.cfg.JWT.Secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return 0, false
		}
		return claims.UserID, true
	}

	if h.cfg.Server.DemoMode {
		if raw := c.Query("user_id"); raw != "" {
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err == nil && userID > 0 {
				return userID, true
			}
		}
	}

	c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
	return 0, false
}

func (h *WebSocketHandler) readLoop(session *ws.Session, autosaver *wizard.Autosaver) {
	defer func() {
		// 断开前把残留的编辑尽力落库
		autosaver.Close()
		h.hub.Unregister(session)
	}()

	for {
		_, data, err := session.Conn.ReadMessage()
		if err != nil {
			break
		}

		var msg wizardClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(session, "无法解析的消息")
			continue
		}

		switch msg.Type {
		case "edit":
			autosaver.Queue(msg.Draft)
		case "flush":
			autosaver.Queue(msg.Draft)
			autosaver.Flush()
		default:
			h.sendError(session, "未知的消息类型")
		}
	}
}

// saveDraft 把防抖合并后的字段批量落库，结果推回当前连接
func (h *WebSocketHandler) saveDraft(session *ws.Session, fields map[string]interface{}) {
	payload, err := json.Marshal(fields)
	if err != nil {
		log.Printf("Autosave marshal error for user %d: %v", session.UserID, err)
		return
	}

	var req dto.SaveDraftRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(session, "草稿字段格式不正确")
		return
	}

	detail, err := h.cancellationService.SaveDraft(session.UserID, session.UserID, &req)
	if err != nil {
		h.sendError(session, err.Error())
		return
	}

	if err := session.Send(&ws.Message{Type: "draft_saved", Data: detail}); err != nil {
		log.Printf("Autosave push error for user %d: %v", session.UserID, err)
	}
}

func (h *WebSocketHandler) sendError(session *ws.Session, message string) {
	_ = session.Send(&ws.Message{
		Type: "error",
		Data: gin.H{"message": message},
	})
}
