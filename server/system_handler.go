package server

import (
	"errors"
	"fmt"
	"time"

	"chargeset/fee"
	"chargeset/internal"
	"chargeset/models"
	"chargeset/ocpp"
	"chargeset/reservation"
	"chargeset/types"
)

const defaultHeartbeatInterval = 300

// SystemHandler implements the central-system side of every supported
// feature. All state lives in the database; the handler itself only holds
// collaborators, so one instance serves all stations concurrently.
type SystemHandler struct {
	database     internal.Database
	logger       internal.LogHandler
	eventHandler internal.EventHandler
	fee          *fee.Service
	location     *time.Location
	debug        bool
}

func NewSystemHandler(location *time.Location) *SystemHandler {
	return &SystemHandler{location: location}
}

func (h *SystemHandler) SetDatabase(database internal.Database) {
	h.database = database
}

func (h *SystemHandler) SetLogger(logger internal.LogHandler) {
	h.logger = logger
}

func (h *SystemHandler) SetEventHandler(eventHandler internal.EventHandler) {
	h.eventHandler = eventHandler
}

func (h *SystemHandler) SetFeeService(service *fee.Service) {
	h.fee = service
}

func (h *SystemHandler) SetDebugMode(debug bool) {
	h.debug = debug
}

func (h *SystemHandler) now() *types.DateTime {
	return types.NewDateTime(time.Now().In(h.location))
}

func (h *SystemHandler) OnBootNotification(stationId string, request *ocpp.BootNotificationRequest) (*ocpp.BootNotificationResponse, error) {
	if h.database != nil {
		if err := h.database.SetStationEvseStatus(stationId, models.EvseStatusAvailable); err != nil {
			h.logger.Error("update evse status on boot", err)
		}
	}
	h.logger.FeatureEvent(request.GetFeatureName(), stationId, fmt.Sprintf("booted: %s %s, reason %s",
		request.ChargingStation.VendorName, request.ChargingStation.Model, request.Reason))
	return ocpp.NewBootNotificationResponse(h.now(), defaultHeartbeatInterval, ocpp.RegistrationStatusAccepted), nil
}

func (h *SystemHandler) OnHeartbeat(stationId string, request *ocpp.HeartbeatRequest) (*ocpp.HeartbeatResponse, error) {
	if h.debug {
		h.logger.FeatureEvent(request.GetFeatureName(), stationId, "")
	}
	return ocpp.NewHeartbeatResponse(h.now()), nil
}

// OnAuthorize resolves a token to a verdict. An Accepted verdict carries the
// full session context, read atomically with the decision, so the station
// never needs a second round trip before charging.
func (h *SystemHandler) OnAuthorize(stationId string, request *ocpp.AuthorizeRequest) (*ocpp.AuthorizeResponse, error) {
	token := request.IdToken.IdToken
	if h.database == nil {
		return ocpp.NewAuthorizeResponse(types.NewIdTokenInfo(types.AuthorizationStatusUnknown)), nil
	}
	res, err := h.database.GetReservationByToken(token)
	if err != nil {
		return nil, fmt.Errorf("reservation lookup for token %s: %w", token, err)
	}
	if res == nil {
		h.logger.FeatureEvent(request.GetFeatureName(), stationId, fmt.Sprintf("no reservation for token %s", token))
		observeVerdict(stationId, string(types.AuthorizationStatusNoCredit))
		return ocpp.NewAuthorizeResponse(types.NewIdTokenInfo(types.AuthorizationStatusNoCredit)), nil
	}

	verdict := reservation.Verdict(res.Status)
	response := ocpp.NewAuthorizeResponse(types.NewIdTokenInfo(verdict))

	if verdict == types.AuthorizationStatusAccepted {
		profile, err := h.database.GetChargingProfile(res.Id.Hex())
		if err != nil {
			return nil, fmt.Errorf("charging profile lookup for reservation %s: %w", res.Id.Hex(), err)
		}
		if profile == nil {
			// a reservation in WAITING without a profile is a data-integrity
			// defect upstream and must not be silently accepted
			return nil, fmt.Errorf("reservation %s accepted but has no charging profile", res.Id.Hex())
		}
		response.Context = &ocpp.SessionContext{
			UserId:            res.UserId,
			IdToken:           res.IdToken,
			ConnectorId:       res.ConnectorId,
			EvseId:            res.EvseId,
			ReservationId:     res.Id.Hex(),
			StartTime:         types.NewDateTime(res.StartTime),
			EndTime:           types.NewDateTime(res.EndTime),
			Cost:              res.Cost,
			TargetEnergyWh:    res.TargetEnergyWh,
			ChargingSchedules: profile.ChargingSchedules,
		}
	}

	h.logger.FeatureEvent(request.GetFeatureName(), stationId, fmt.Sprintf("token %s: %s", token, verdict))
	observeVerdict(stationId, string(verdict))
	h.notifyAuthorize(&internal.EventMessage{
		Type:          "Authorize",
		StationId:     stationId,
		EvseId:        res.EvseId,
		ConnectorId:   res.ConnectorId,
		Time:          time.Now(),
		UserId:        res.UserId,
		IdToken:       token,
		ReservationId: res.Id.Hex(),
		Status:        string(verdict),
	})
	return response, nil
}

func (h *SystemHandler) OnTransactionEvent(stationId string, request *ocpp.TransactionEventRequest) (*ocpp.TransactionEventResponse, error) {
	if h.database == nil {
		return nil, fmt.Errorf("transaction event from %s rejected, database is not configured", stationId)
	}
	if err := request.Context.Validate(); err != nil {
		return nil, err
	}
	switch request.EventType {
	case ocpp.TransactionEventStarted:
		return h.startTransaction(stationId, request)
	case ocpp.TransactionEventEnded:
		return h.stopTransaction(stationId, request)
	default:
		return nil, fmt.Errorf("unsupported transaction event type: %s", request.EventType)
	}
}

func (h *SystemHandler) startTransaction(stationId string, request *ocpp.TransactionEventRequest) (*ocpp.TransactionEventResponse, error) {
	sc := request.Context
	res, err := h.database.GetReservation(sc.ReservationId)
	if err != nil {
		return nil, fmt.Errorf("reservation %s lookup: %w", sc.ReservationId, err)
	}
	if res == nil {
		return nil, fmt.Errorf("reservation %s not found", sc.ReservationId)
	}
	state := reservation.NewState(res.Status)
	if !state.Can(reservation.EventStart) {
		return h.rejectDuplicateStart(stationId, sc.ReservationId)
	}

	// the conditional write is the authoritative gate against races; the
	// state machine above only filters requests that can never succeed
	err = h.database.StartReservation(sc.ReservationId)
	if errors.Is(err, internal.ErrNotEligible) {
		return h.rejectDuplicateStart(stationId, sc.ReservationId)
	}
	if err != nil {
		return nil, fmt.Errorf("start reservation %s: %w", sc.ReservationId, err)
	}

	transaction := &models.Transaction{
		StationId:               stationId,
		EvseId:                  sc.EvseId,
		ConnectorId:             sc.ConnectorId,
		UserId:                  sc.UserId,
		IdToken:                 sc.IdToken,
		ReservationId:           sc.ReservationId,
		StartTime:               request.Timestamp.Time,
		Cost:                    0,
		EnergyWh:                0,
		Status:                  models.TransactionStatusCharging,
		StartSchedule:           time.Now().In(h.location),
		ChargingProfileSnapshot: sc.ChargingSchedules,
	}
	if err = h.database.AddTransaction(transaction); err != nil {
		return nil, fmt.Errorf("save transaction for reservation %s: %w", sc.ReservationId, err)
	}
	if err = h.database.SetEvseStatus(sc.EvseId, models.EvseStatusCharging); err != nil {
		h.logger.Error("update evse status on start", err)
	}

	h.logger.FeatureEvent(request.GetFeatureName(), stationId, fmt.Sprintf("transaction started, reservation %s, evse %s", sc.ReservationId, sc.EvseId))
	observeTransaction(stationId, string(request.EventType))
	h.notifyTransactionStart(&internal.EventMessage{
		Type:          "TransactionStart",
		StationId:     stationId,
		EvseId:        sc.EvseId,
		ConnectorId:   sc.ConnectorId,
		Time:          time.Now(),
		UserId:        sc.UserId,
		IdToken:       sc.IdToken,
		ReservationId: sc.ReservationId,
		Status:        models.TransactionStatusCharging,
	})

	response := ocpp.NewTransactionEventResponse()
	response.IdTokenInfo = types.NewIdTokenInfo(types.AuthorizationStatusAccepted)
	return response, nil
}

// rejectDuplicateStart answers the losing side of a start race. This is a
// recoverable outcome carried in the response payload, not a call error.
func (h *SystemHandler) rejectDuplicateStart(stationId, reservationId string) (*ocpp.TransactionEventResponse, error) {
	h.logger.Warn(fmt.Sprintf("duplicate start rejected for reservation %s from %s", reservationId, stationId))
	response := ocpp.NewTransactionEventResponse()
	response.IdTokenInfo = types.NewIdTokenInfo(types.AuthorizationStatusConcurrentTx)
	return response, nil
}

func (h *SystemHandler) stopTransaction(stationId string, request *ocpp.TransactionEventRequest) (*ocpp.TransactionEventResponse, error) {
	sc := request.Context
	endTime := request.Timestamp.Time

	err := h.database.CompleteTransaction(sc.ReservationId, endTime)
	if errors.Is(err, internal.ErrNotEligible) {
		h.logger.Warn(fmt.Sprintf("no charging transaction to complete for reservation %s", sc.ReservationId))
	} else if err != nil {
		return nil, fmt.Errorf("complete transaction for reservation %s: %w", sc.ReservationId, err)
	}

	err = h.database.CompleteReservation(sc.ReservationId)
	if errors.Is(err, internal.ErrNotEligible) {
		h.logger.Warn(fmt.Sprintf("reservation %s was not in ONGOING at session end", sc.ReservationId))
	} else if err != nil {
		return nil, fmt.Errorf("complete reservation %s: %w", sc.ReservationId, err)
	}

	if err = h.database.SetEvseStatus(sc.EvseId, models.EvseStatusAvailable); err != nil {
		h.logger.Error("update evse status on stop", err)
	}

	h.logger.FeatureEvent(request.GetFeatureName(), stationId, fmt.Sprintf("transaction ended, reservation %s, reason %s",
		sc.ReservationId, request.TransactionInfo.StoppedReason))
	observeTransaction(stationId, string(request.EventType))
	h.notifyTransactionStop(&internal.EventMessage{
		Type:          "TransactionStop",
		StationId:     stationId,
		EvseId:        sc.EvseId,
		ConnectorId:   sc.ConnectorId,
		Time:          time.Now(),
		UserId:        sc.UserId,
		IdToken:       sc.IdToken,
		ReservationId: sc.ReservationId,
		Status:        models.TransactionStatusCompleted,
		Cost:          sc.Cost,
		Info:          request.TransactionInfo.StoppedReason,
	})

	return ocpp.NewTransactionEventResponse(), nil
}

func (h *SystemHandler) OnCostUpdated(stationId string, request *ocpp.CostUpdatedRequest) (*ocpp.CostUpdatedResponse, error) {
	if h.database == nil {
		return nil, fmt.Errorf("cost update from %s rejected, database is not configured", stationId)
	}
	if err := h.database.UpdateTransactionTotals(request.ReservationId, request.TotalCost, request.TotalEnergy); err != nil {
		return nil, fmt.Errorf("update totals for reservation %s: %w", request.ReservationId, err)
	}
	if h.debug {
		h.logger.FeatureEvent(request.GetFeatureName(), stationId, fmt.Sprintf("reservation %s: cost %d, energy %d Wh",
			request.ReservationId, request.TotalCost, request.TotalEnergy))
	}
	observeEnergy(stationId, request.TotalEnergy)
	return ocpp.NewCostUpdatedResponse(), nil
}

func (h *SystemHandler) OnStatusNotification(stationId string, request *ocpp.StatusNotificationRequest) (*ocpp.StatusNotificationResponse, error) {
	h.logger.FeatureEvent(request.GetFeatureName(), stationId, fmt.Sprintf("evse %s connector %d: %s",
		request.EvseId, request.ConnectorId, request.ConnectorStatus))
	h.notifyStatus(&internal.EventMessage{
		Type:        "StatusNotification",
		StationId:   stationId,
		EvseId:      request.EvseId,
		ConnectorId: request.ConnectorId,
		Time:        time.Now(),
		Status:      string(request.ConnectorStatus),
	})
	return ocpp.NewStatusNotificationResponse(), nil
}

// OnDisconnect marks every EVSE of a vanished station offline. The session
// pipeline is not reconciled here; a stuck CHARGING transaction is left for
// an offline sweep.
func (h *SystemHandler) OnDisconnect(stationId string) {
	if h.database != nil {
		if err := h.database.SetStationEvseStatus(stationId, models.EvseStatusOffline); err != nil {
			h.logger.Error("update evse status on disconnect", err)
		}
	}
	h.logger.FeatureEvent("Disconnect", stationId, "station connection lost")
}

// OnBuildSchedule serves the control-plane command that prices a reservation
// and stores its charging profile.
func (h *SystemHandler) OnBuildSchedule(reservationId, stationId string, startHour, durationSeconds, energyWh int) (*models.ChargingProfile, int, error) {
	if h.fee == nil {
		return nil, 0, fmt.Errorf("fee service is not configured")
	}
	schedule, total, err := h.fee.BuildSchedule(startHour, durationSeconds, energyWh, stationId)
	if err != nil {
		return nil, 0, err
	}
	now := time.Now().In(h.location)
	startSchedule := time.Date(now.Year(), now.Month(), now.Day(), startHour, 0, 0, 0, h.location)

	profile := &models.ChargingProfile{
		ReservationId:       reservationId,
		ChargingProfileKind: types.ChargingProfileKindAbsolute,
		StartSchedule:       startSchedule,
		ChargingSchedules:   schedule,
	}
	if h.database != nil {
		if err = h.database.SaveChargingProfile(profile); err != nil {
			return nil, 0, fmt.Errorf("save charging profile for reservation %s: %w", reservationId, err)
		}
	}
	h.logger.FeatureEvent("BuildSchedule", stationId, fmt.Sprintf("reservation %s priced at %d", reservationId, total))
	return profile, total, nil
}

func (h *SystemHandler) notifyAuthorize(event *internal.EventMessage) {
	if h.eventHandler != nil {
		h.eventHandler.OnAuthorize(event)
	}
}

func (h *SystemHandler) notifyTransactionStart(event *internal.EventMessage) {
	if h.eventHandler != nil {
		h.eventHandler.OnTransactionStart(event)
	}
}

func (h *SystemHandler) notifyTransactionStop(event *internal.EventMessage) {
	if h.eventHandler != nil {
		h.eventHandler.OnTransactionStop(event)
	}
}

func (h *SystemHandler) notifyStatus(event *internal.EventMessage) {
	if h.eventHandler != nil {
		h.eventHandler.OnStatusNotification(event)
	}
}
