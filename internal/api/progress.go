package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pulse-reports/internal/models"
	"pulse-reports/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth happens in-band via the $AUTH message, origins are not restricted
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// wsCommand is a client-to-server message on the progress socket
type wsCommand struct {
	Command  string `json:"command"`
	ReportID string `json:"reportId,omitempty"`
}

// wsEvent is a server-to-client message on the progress socket
type wsEvent struct {
	Type     string  `json:"type"`
	ReportID string  `json:"reportId,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Status   string  `json:"status,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// HandleProgressSocket serves the report progress websocket.
//
// Protocol:
//  1. Client sends: $AUTH <jwt-token> as the first text message
//  2. Server replies with a "connected" event
//  3. Client sends JSON commands: subscribe, unsubscribe, ping, cancel
//  4. Server pushes progress events for subscribed reports
func (h *Handler) HandleProgressSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WARNING: WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	userID, err := h.authenticateSocket(conn)
	if err != nil {
		log.Printf("WARNING: WebSocket authentication failed: %v", err)
		writeEvent(conn, wsEvent{Type: "error", Message: "authentication failed"})
		return
	}

	session := newProgressSession(conn, h, userID)
	defer session.close()

	if err := session.send(wsEvent{Type: "connected", Message: "authenticated"}); err != nil {
		return
	}

	log.Printf("Progress socket connected for user %s", userID)
	session.run()
}

// authenticateSocket reads and validates the $AUTH handshake message
func (h *Handler) authenticateSocket(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	messageType, message, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("failed to read auth message: %w", err)
	}
	if messageType != websocket.TextMessage {
		return "", fmt.Errorf("expected text message for authentication")
	}

	msgStr := string(message)
	if !strings.HasPrefix(msgStr, "$AUTH ") {
		return "", fmt.Errorf("first message must be $AUTH <token>")
	}
	token := strings.TrimSpace(strings.TrimPrefix(msgStr, "$AUTH "))

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	return claims.UserID, nil
}

// progressSession tracks one socket's subscriptions and serializes writes
type progressSession struct {
	conn    *websocket.Conn
	handler *Handler
	userID  string

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]chan models.ProgressEvent
	done chan struct{}
}

func newProgressSession(conn *websocket.Conn, handler *Handler, userID string) *progressSession {
	return &progressSession{
		conn:    conn,
		handler: handler,
		userID:  userID,
		subs:    make(map[string]chan models.ProgressEvent),
		done:    make(chan struct{}),
	}
}

// run processes client commands until the socket closes
func (s *progressSession) run() {
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.pingLoop()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARNING: Progress socket read error for user %s: %v", s.userID, err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			s.send(wsEvent{Type: "error", Message: "commands must be JSON"})
			continue
		}
		s.handleCommand(cmd)
	}
}

func (s *progressSession) handleCommand(cmd wsCommand) {
	switch cmd.Command {
	case "subscribe":
		s.subscribe(cmd.ReportID)
	case "unsubscribe":
		s.unsubscribe(cmd.ReportID)
	case "ping":
		s.send(wsEvent{Type: "pong"})
	case "cancel":
		// Cancellation interrupts the generation context; the report ends
		// up failed once the orchestrator observes it between attempts
		if !s.ownsReport(cmd.ReportID) {
			s.send(wsEvent{Type: "error", ReportID: cmd.ReportID, Message: "report not found"})
			return
		}
		if s.handler.progressHub.Cancel(cmd.ReportID) {
			s.send(wsEvent{Type: "cancelling", ReportID: cmd.ReportID, Message: "cancellation requested"})
		} else {
			s.send(wsEvent{Type: "error", ReportID: cmd.ReportID, Message: "no generation in flight"})
		}
	default:
		s.send(wsEvent{Type: "error", Message: "unknown command: " + cmd.Command})
	}
}

func (s *progressSession) subscribe(reportID string) {
	if reportID == "" {
		s.send(wsEvent{Type: "error", Message: "subscribe requires reportId"})
		return
	}
	if !s.ownsReport(reportID) {
		s.send(wsEvent{Type: "error", ReportID: reportID, Message: "report not found"})
		return
	}

	s.mu.Lock()
	if _, ok := s.subs[reportID]; ok {
		s.mu.Unlock()
		return
	}
	ch := s.handler.progressHub.Subscribe(reportID)
	s.subs[reportID] = ch
	s.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				s.send(wsEvent{
					Type:     "progress",
					ReportID: event.ReportID,
					Progress: event.Progress,
					Status:   event.Status,
					Message:  event.Message,
				})
			case <-s.done:
				return
			}
		}
	}()

	s.send(wsEvent{Type: "subscribed", ReportID: reportID})
}

func (s *progressSession) unsubscribe(reportID string) {
	s.mu.Lock()
	ch, ok := s.subs[reportID]
	if ok {
		delete(s.subs, reportID)
	}
	s.mu.Unlock()

	if ok {
		s.handler.progressHub.Unsubscribe(reportID, ch)
		s.send(wsEvent{Type: "unsubscribed", ReportID: reportID})
	}
}

func (s *progressSession) ownsReport(reportID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report, err := s.handler.store.Get(ctx, reportID)
	if err != nil {
		if err != services.ErrReportNotFound {
			log.Printf("WARNING: Ownership check failed for report %s: %v", reportID, err)
		}
		return false
	}
	return report.UserID == s.userID
}

func (s *progressSession) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *progressSession) send(event wsEvent) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(event)
}

func (s *progressSession) close() {
	close(s.done)

	s.mu.Lock()
	defer s.mu.Unlock()
	for reportID, ch := range s.subs {
		s.handler.progressHub.Unsubscribe(reportID, ch)
	}
	s.subs = nil
}

func writeEvent(conn *websocket.Conn, event wsEvent) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(event)
}
