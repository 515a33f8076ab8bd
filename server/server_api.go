package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"chargeset/internal"
	"chargeset/internal/config"
)

const (
	apiEndpoint = "/api"
)

type Api struct {
	conf           *config.Config
	httpServer     *http.Server
	requestHandler func(w http.ResponseWriter, command *Command) error
	logger         internal.LogHandler
}

// Command is the control-plane request body. BuildSchedule prices a
// reservation and stores its charging profile.
type Command struct {
	Command         string `json:"command"`
	ReservationId   string `json:"reservation_id"`
	StationId       string `json:"station_id"`
	StartHour       int    `json:"start_hour"`
	DurationSeconds int    `json:"duration_seconds"`
	EnergyWh        int    `json:"energy_wh"`
}

func NewServerApi(conf *config.Config, logger internal.LogHandler) *Api {
	server := Api{
		conf:   conf,
		logger: logger,
	}
	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", conf.Api.BindIP, conf.Api.Port),
		Handler: http.HandlerFunc(server.handleRoot),
	}
	return &server
}

func (s *Api) Start() error {
	if !s.conf.Api.Enabled {
		return nil
	}
	return s.httpServer.ListenAndServe()
}

func (s *Api) SetRequestHandler(handler func(w http.ResponseWriter, command *Command) error) {
	s.requestHandler = handler
}

// handle requests to the root path
func (s *Api) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.logger.Warn(fmt.Sprintf("api: invalid method %s from %s", r.Method, r.RemoteAddr))
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != apiEndpoint {
		s.logger.Warn(fmt.Sprintf("api: invalid path %s from %s", r.URL.Path, r.RemoteAddr))
		w.WriteHeader(http.StatusNotFound)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error reading body from %s: %s", r.RemoteAddr, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var command Command
	err = json.Unmarshal(body, &command)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error parsing command from %s: %s", r.RemoteAddr, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	err = s.requestHandler(w, &command)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error handling command %s: %s", command.Command, err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}
