// Package server exposes the web control panel: static files, a JSON state
// endpoint and a WebSocket feed of live state changes. Mutating commands
// received over the WebSocket are forwarded onto the core command channel so
// all device I/O stays on the agent's poll goroutine.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/amadea-system/QmkHidGear/internal/core"
	"github.com/amadea-system/QmkHidGear/internal/pattern"
	"github.com/amadea-system/QmkHidGear/internal/scheduler"

	"github.com/gorilla/websocket"
)

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub       *Hub
	state     *core.State
	commands  core.CommandChannel
	events    *core.EventBus
	patterns  *pattern.Engine
	schedules *scheduler.Scheduler

	httpServer     *http.Server
	staticFilesDir string
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewServer creates a new server instance and starts its hub and event pump.
func NewServer(state *core.State, commands core.CommandChannel, events *core.EventBus, patterns *pattern.Engine, schedules *scheduler.Scheduler, port string, staticFilesDir string, allowedOrigins []string) *Server {
	hub := NewHub()
	go hub.Run()

	s := &Server{
		Hub:       hub,
		state:     state,
		commands:  commands,
		events:    events,
		patterns:  patterns,
		schedules: schedules,

		staticFilesDir: staticFilesDir,
		allowedOrigins: allowedOrigins,
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				log.Println("Warning: WebSocket CheckOrigin is disabled.")
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			log.Printf("WebSocket connection blocked: Origin '%s' not in allowed list.", origin)
			return false
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.staticFilesDir)))
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: ":" + port, Handler: mux}

	go s.pumpEvents()

	return s
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleState serves a JSON snapshot of the current application state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state.Clone()); err != nil {
		log.Printf("Error encoding state: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Initial dump so a fresh client can render without waiting for events.
	_ = conn.WriteJSON(wrap("state", s.state.Clone()))

	if patterns, err := s.patterns.PatternList(); err == nil {
		_ = conn.WriteJSON(wrap("pattern_list", patterns))
	}

	_ = conn.WriteJSON(wrap("schedule_list", s.schedules.GetAll()))

	s.Hub.register <- conn

	defer func() {
		s.Hub.unregister <- conn
	}()

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleCommand(msgBytes)
	}
}

// handleCommand routes a client command. Device and pattern execution
// commands go onto the command channel; pattern file and schedule edits are
// served directly since their stores are safe to touch from here.
func (s *Server) handleCommand(raw []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.Printf("Error unmarshalling command: %v", err)
		return
	}

	switch cmd.Type {

	case "setFronter", "refreshFront", "pingKeyboards", "setLeds", "runPattern", "stopPattern":
		s.commands <- core.Command{Type: core.CommandType(cmd.Type), Payload: cmd.Payload}

	case "addSchedule":
		spec, specOk := cmd.Payload["spec"].(string)
		command, cmdOk := cmd.Payload["command"].(string)
		if !specOk || !cmdOk {
			return
		}
		s.schedules.Add(spec, command)
		s.Hub.Broadcast(wrap("schedule_list", s.schedules.GetAll()))

	case "removeSchedule":
		idStr, ok := cmd.Payload["id"].(string)
		if !ok {
			return
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return
		}
		s.schedules.Remove(id)
		s.Hub.Broadcast(wrap("schedule_list", s.schedules.GetAll()))

	case "getPatternCode":
		if name, ok := cmd.Payload["name"].(string); ok {
			content, err := s.patterns.PatternCode(name)
			if err != nil {
				log.Printf("Error getting pattern code: %v", err)
				return
			}
			s.Hub.Broadcast(wrap("pattern_code", map[string]string{"name": name, "code": content}))
		}

	case "savePatternCode":
		name, nameOk := cmd.Payload["name"].(string)
		code, codeOk := cmd.Payload["code"].(string)
		if nameOk && codeOk {
			if err := s.patterns.SavePatternCode(name, code); err != nil {
				log.Printf("Error saving pattern: %v", err)
				return
			}
			patterns, _ := s.patterns.PatternList()
			s.Hub.Broadcast(wrap("pattern_list", patterns))
		}

	case "deletePattern":
		if name, ok := cmd.Payload["name"].(string); ok {
			if err := s.patterns.DeletePattern(name); err != nil {
				log.Printf("Error deleting pattern: %v", err)
				return
			}
			patterns, _ := s.patterns.PatternList()
			s.Hub.Broadcast(wrap("pattern_list", patterns))
		}

	default:
		log.Printf("Unknown command type: %s", cmd.Type)
	}
}

// pumpEvents forwards bus events to connected WebSocket clients.
func (s *Server) pumpEvents() {
	sub := s.events.Subscribe(
		core.StateChangedEvent,
		core.FronterChangedEvent,
		core.LayerChangedEvent,
		core.DeviceConnectedEvent,
		core.ActivityPingEvent,
		core.PatternChangedEvent,
		core.NoticeEvent,
	)
	for ev := range sub {
		s.Hub.Broadcast(wrap(messageType(ev.Type), ev.Payload))
	}
}

// messageType maps a bus event type onto the wire message type the web
// panel expects.
func messageType(t core.EventType) string {
	switch t {
	case core.StateChangedEvent:
		return "state"
	case core.FronterChangedEvent:
		return "fronter_update"
	case core.LayerChangedEvent:
		return "layer_update"
	case core.DeviceConnectedEvent:
		return "keyboard_status"
	case core.ActivityPingEvent:
		return "activity_ping"
	case core.PatternChangedEvent:
		return "pattern_status"
	case core.NoticeEvent:
		return "notice"
	}
	return string(t)
}
