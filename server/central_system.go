package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"chargeset/fee"
	"chargeset/internal"
	"chargeset/internal/config"
	"chargeset/ocpp"
	"chargeset/telegram"
	"chargeset/types"
	"chargeset/utility"
)

const commandBuildSchedule = "BuildSchedule"

type CentralSystem struct {
	server   *Server
	api      *Api
	logger   internal.LogHandler
	handler  *SystemHandler
	location *time.Location
}

func (cs *CentralSystem) SetSystemHandler(handler *SystemHandler) {
	cs.handler = handler
}

func (cs *CentralSystem) handleIncomingMessage(ws ocpp.WebSocket, data []byte) error {
	stationId := ws.ID()
	message, err := utility.ParseJson(data)
	if err != nil {
		return err
	}
	callType, err := MessageType(message)
	if err != nil {
		return err
	}
	if callType != CallTypeRequest {
		cs.logger.Warn(fmt.Sprintf("unexpected message type %d from station %s: %s", callType, stationId, string(data)))
		return nil
	}
	callRequest, err := ParseRequest(message)
	if err != nil {
		return err
	}
	ws.SetUniqueId(callRequest.UniqueId)

	request := callRequest.Payload
	action := request.GetFeatureName()
	var confirmation ocpp.Response
	switch action {
	case ocpp.BootNotificationFeatureName:
		confirmation, err = cs.handler.OnBootNotification(stationId, request.(*ocpp.BootNotificationRequest))
	case ocpp.AuthorizeFeatureName:
		confirmation, err = cs.handler.OnAuthorize(stationId, request.(*ocpp.AuthorizeRequest))
	case ocpp.HeartbeatFeatureName:
		confirmation, err = cs.handler.OnHeartbeat(stationId, request.(*ocpp.HeartbeatRequest))
	case ocpp.TransactionEventFeatureName:
		confirmation, err = cs.handler.OnTransactionEvent(stationId, request.(*ocpp.TransactionEventRequest))
	case ocpp.CostUpdatedFeatureName:
		confirmation, err = cs.handler.OnCostUpdated(stationId, request.(*ocpp.CostUpdatedRequest))
	case ocpp.StatusNotificationFeatureName:
		confirmation, err = cs.handler.OnStatusNotification(stationId, request.(*ocpp.StatusNotificationRequest))
	default:
		err = fmt.Errorf("feature not supported: %s", action)
	}
	if err != nil {
		cs.logger.Error(fmt.Sprintf("%s from station %s", action, stationId), err)
		if !ws.IsClosed() {
			callError := CreateCallError(callRequest.UniqueId, "InternalError", err.Error())
			return cs.server.SendResponse(ws, callError)
		}
		return nil
	}

	if ws.IsClosed() {
		cs.logger.FeatureEvent(action, stationId, "websocket closed, response not sent")
		return nil
	}
	callResult := CreateCallResult(confirmation, callRequest.UniqueId)
	return cs.server.SendResponse(ws, callResult)
}

func (cs *CentralSystem) handleApiRequest(w http.ResponseWriter, command *Command) error {
	switch command.Command {
	case commandBuildSchedule:
		profile, total, err := cs.handler.OnBuildSchedule(command.ReservationId, command.StationId,
			command.StartHour, command.DurationSeconds, command.EnergyWh)
		if err != nil {
			return err
		}
		w.Header().Add("Content-Type", "application/json; charset=utf-8")
		return json.NewEncoder(w).Encode(map[string]interface{}{
			"reservation_id": command.ReservationId,
			"total_fee":      total,
			"schedule":       profile.ChargingSchedules,
		})
	default:
		return fmt.Errorf("command not supported: %s", command.Command)
	}
}

func (cs *CentralSystem) Start() {

	go func() {
		if err := cs.server.Start(); err != nil {
			cs.logger.Error("websocket server failed", err)
		}
	}()

	go func() {
		if err := cs.api.Start(); err != nil {
			cs.logger.Error("api server failed", err)
		}
	}()

	select {}
}

func NewCentralSystem(conf *config.Config) (CentralSystem, error) {
	cs := CentralSystem{}

	log.Println("set time zone to " + conf.TimeZone)
	location, err := time.LoadLocation(conf.TimeZone)
	if err != nil {
		return cs, fmt.Errorf("time zone initialization failed: %s", err)
	}
	cs.location = location

	var database internal.Database
	if conf.Mongo.Enabled {
		database, err = internal.NewMongoClient(conf)
		if err != nil {
			return cs, fmt.Errorf("mongodb setup failed: %s", err)
		}
		if database != nil {
			log.Println("mongodb is configured and enabled")
		}
	} else {
		log.Println("database is disabled")
	}

	// logger with database for persisted feature events
	logService := internal.NewLogger(location)
	logService.SetDebugMode(conf.IsDebug)
	logService.SetDatabase(database)
	cs.logger = logService

	// fee optimizer
	feeService := fee.NewService()
	feeService.SetDatabase(database)
	feeService.SetLogger(logService)

	// system events handler
	systemHandler := NewSystemHandler(location)
	systemHandler.SetDatabase(database)
	systemHandler.SetLogger(logService)
	systemHandler.SetFeeService(feeService)
	systemHandler.SetDebugMode(conf.IsDebug)

	if conf.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(conf.Telegram.ApiKey)
		if err != nil {
			return cs, fmt.Errorf("telegram bot setup failed: %s", err)
		}
		telegramBot.SetDatabase(database)
		telegramBot.SetLogger(logService)
		telegramBot.Start()
		systemHandler.SetEventHandler(telegramBot)
		log.Println("telegram bot is configured and enabled")
	}

	// websocket listener
	wsServer := NewServer(conf, logService)
	wsServer.AddSupportedSubProtocol(types.SubProtocol201)
	wsServer.SetMessageHandler(cs.handleIncomingMessage)
	wsServer.SetWatchdog(systemHandler)
	cs.server = wsServer

	cs.SetSystemHandler(systemHandler)

	// api server
	apiServer := NewServerApi(conf, logService)
	apiServer.SetRequestHandler(cs.handleApiRequest)
	cs.api = apiServer

	return cs, nil
}
