// Package gatewaytest runs an in-process agent gateway for tests.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server answers the connect handshake and node.pair.list with fixed data.
type Server struct {
	*httptest.Server

	// Token the connect request must carry.
	Token string

	// Pairs is sent as the node.pair.list payload.
	Pairs any

	mu         sync.Mutex
	pairsError string
	noise      bool
	paths      []string
	connects   []map[string]any
}

// FailPairs makes node.pair.list fail with msg.
func (s *Server) FailPairs(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairsError = msg
}

// AddNoise makes the server write frames a client must skip: a non-JSON
// message and an unrelated event before the challenge, and a response with
// a foreign id before every reply.
func (s *Server) AddNoise() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noise = true
}

// NewServer starts a gateway serving on /rpc.
func NewServer(token string, pairs any) *Server {
	s := &Server{Token: token, Pairs: pairs}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// WSURL returns the ws:// base URL of the server, without the /rpc path.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

// Requests returns the request URIs the server was dialed with.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Connects returns the params of every connect request received.
func (s *Server) Connects() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.connects...)
}

type req struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.RequestURI())
	noise, pairsError := s.noise, s.pairsError
	s.mu.Unlock()

	if r.URL.Path != "/rpc" {
		http.NotFound(w, r)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if noise {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(map[string]any{"type": "event", "event": "presence"})
	}
	_ = conn.WriteJSON(map[string]any{"type": "event", "event": "connect.challenge", "payload": map[string]any{"nonce": "n-1"}})

	authed := false
	for {
		var in req
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if noise {
			_ = conn.WriteJSON(map[string]any{"type": "res", "id": "someone-else", "ok": true})
		}

		switch {
		case in.Method == "connect":
			s.mu.Lock()
			s.connects = append(s.connects, in.Params)
			s.mu.Unlock()

			auth, _ := in.Params["auth"].(map[string]any)
			if auth["token"] != s.Token {
				_ = conn.WriteJSON(fail(in.ID, "unauthorized", "invalid token"))
				return
			}
			authed = true
			_ = conn.WriteJSON(map[string]any{"type": "res", "id": in.ID, "ok": true, "payload": map[string]any{"type": "hello-ok", "protocol": 3}})

		case !authed:
			_ = conn.WriteJSON(fail(in.ID, "unauthorized", "connect first"))
			return

		case in.Method == "node.pair.list" && pairsError != "":
			_ = conn.WriteJSON(fail(in.ID, "", pairsError))

		case in.Method == "node.pair.list":
			payload, _ := json.Marshal(s.Pairs)
			_ = conn.WriteJSON(map[string]any{"type": "res", "id": in.ID, "ok": true, "payload": json.RawMessage(payload)})

		default:
			_ = conn.WriteJSON(fail(in.ID, "unknown_method", in.Method))
		}
	}
}

func fail(id, code, msg string) map[string]any {
	return map[string]any{"type": "res", "id": id, "ok": false, "error": map[string]any{"code": code, "message": msg}}
}
