package server

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"chargeset/internal"
	"chargeset/internal/config"
	"chargeset/ocpp"
	"chargeset/utility"
)

const (
	wsEndpoint = "/ws/:id"
)

// Watchdog is notified when a station connection is lost, so its projected
// state can be marked offline.
type Watchdog interface {
	OnDisconnect(stationId string)
}

type Server struct {
	conf           *config.Config
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	messageHandler func(ws ocpp.WebSocket, data []byte) error
	watchdog       Watchdog
	logger         internal.LogHandler

	mux         sync.Mutex
	connections map[string]*WebSocket
}

type WebSocket struct {
	conn     *websocket.Conn
	id       string
	uniqueId string
	mux      sync.Mutex
	closed   bool
}

func (ws *WebSocket) ID() string {
	return ws.id
}

func (ws *WebSocket) UniqueId() string {
	return ws.uniqueId
}

func (ws *WebSocket) SetUniqueId(uniqueId string) {
	ws.uniqueId = uniqueId
}

func (ws *WebSocket) IsClosed() bool {
	ws.mux.Lock()
	defer ws.mux.Unlock()
	return ws.closed
}

func (ws *WebSocket) Send(data []byte) error {
	ws.mux.Lock()
	defer ws.mux.Unlock()
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *WebSocket) markClosed() {
	ws.mux.Lock()
	ws.closed = true
	ws.mux.Unlock()
}

func NewServer(conf *config.Config, logger internal.LogHandler) *Server {
	server := Server{
		conf:        conf,
		logger:      logger,
		upgrader:    websocket.Upgrader{Subprotocols: []string{}},
		connections: make(map[string]*WebSocket),
	}
	// register itself as a router for httpServer handler
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler: router,
	}
	return &server
}

func (s *Server) AddSupportedSubProtocol(proto string) {
	for _, sub := range s.upgrader.Subprotocols {
		if sub == proto {
			return
		}
	}
	s.upgrader.Subprotocols = append(s.upgrader.Subprotocols, proto)
}

func (s *Server) SetMessageHandler(handler func(ws ocpp.WebSocket, data []byte) error) {
	s.messageHandler = handler
}

func (s *Server) SetWatchdog(watchdog Watchdog) {
	s.watchdog = watchdog
}

func (s *Server) Register(router *httprouter.Router) {
	router.GET(wsEndpoint, s.handleWsRequest)
}

func (s *Server) handleWsRequest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("id")
	s.logger.Debug(fmt.Sprintf("connection initiated from remote %s", r.RemoteAddr))

	s.upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}

	clientSubProto := websocket.Subprotocols(r)
	requestedProto := ""
	for _, proto := range clientSubProto {
		if utility.Contains(s.upgrader.Subprotocols, proto) {
			requestedProto = proto
			break
		}
	}
	if requestedProto == "" {
		s.logger.Warn(fmt.Sprintf("id %s offered no supported subprotocol: %v", id, clientSubProto))
		http.Error(w, "unsupported subprotocol", http.StatusBadRequest)
		return
	}
	responseHeader := http.Header{}
	responseHeader.Add("Sec-WebSocket-Protocol", requestedProto)

	conn, err := s.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		s.logger.Error("upgrade failed: ", err)
		return
	}

	s.logger.Debug(fmt.Sprintf("upgraded socket for %s and ready to receive data", id))
	ws := WebSocket{
		conn: conn,
		id:   id,
	}
	s.addConnection(&ws)

	go s.messageReader(&ws)
}

func (s *Server) addConnection(ws *WebSocket) {
	s.mux.Lock()
	s.connections[ws.id] = ws
	count := len(s.connections)
	s.mux.Unlock()
	observeConnections(count)
}

func (s *Server) removeConnection(ws *WebSocket) {
	s.mux.Lock()
	if s.connections[ws.id] == ws {
		delete(s.connections, ws.id)
	}
	count := len(s.connections)
	s.mux.Unlock()
	observeConnections(count)
}

func (s *Server) messageReader(ws *WebSocket) {
	conn := ws.conn
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, 3001) {
				s.logger.Debug(fmt.Sprintf("id %s leaving session", ws.id))
			} else {
				s.logger.Debug(fmt.Sprintf("id %s is closing session %s", ws.id, err))
			}
			ws.markClosed()
			s.removeConnection(ws)
			err = conn.Close()
			if err != nil {
				s.logger.Warn(fmt.Sprintf("error while closing socket %s %s", ws.id, err))
			}
			if s.watchdog != nil {
				s.watchdog.OnDisconnect(ws.id)
			}
			return
		}
		s.logger.RawDataEvent("IN", string(message))
		if s.messageHandler != nil {
			err = s.messageHandler(ws, message)
			if err != nil {
				s.logger.Error(fmt.Sprintf("handling message from %s", ws.id), err)
				continue
			}
		}
	}
}

func (s *Server) Start() error {
	if s.conf == nil {
		return utility.Err("configuration not loaded")
	}
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	s.logger.Debug(fmt.Sprintf("starting server on %s", serverAddress))
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}
	if s.conf.Listen.TLS {
		s.logger.Debug("starting https TLS server")
		err = s.httpServer.ServeTLS(listener, s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
	} else {
		s.logger.Debug("starting http server")
		err = s.httpServer.Serve(listener)
	}
	return err
}

func (s *Server) SendResponse(ws ocpp.WebSocket, response ocppResponse) error {
	data, err := response.MarshalJSON()
	if err != nil {
		s.logger.Error("error encoding response", err)
		return err
	}
	s.logger.RawDataEvent("OUT", string(data))
	if err = ws.Send(data); err != nil {
		s.logger.Error(fmt.Sprintf("error sending response to %s", ws.ID()), err)
	}
	return err
}

// ocppResponse is either a CallResult or a CallError frame.
type ocppResponse interface {
	MarshalJSON() ([]byte, error)
}
