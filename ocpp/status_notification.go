package ocpp

import "chargeset/types"

const StatusNotificationFeatureName = "StatusNotification"

type ConnectorStatus string

const (
	ConnectorStatusAvailable   ConnectorStatus = "Available"
	ConnectorStatusOccupied    ConnectorStatus = "Occupied"
	ConnectorStatusReserved    ConnectorStatus = "Reserved"
	ConnectorStatusUnavailable ConnectorStatus = "Unavailable"
	ConnectorStatusFaulted     ConnectorStatus = "Faulted"
)

type StatusNotificationRequest struct {
	Timestamp       *types.DateTime `json:"timestamp" validate:"required"`
	ConnectorStatus ConnectorStatus `json:"connectorStatus" validate:"required"`
	EvseId          string          `json:"evseId" validate:"required,max=36"`
	ConnectorId     int             `json:"connectorId" validate:"gte=0"`
}

type StatusNotificationResponse struct {
}

func (r *StatusNotificationRequest) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func (r *StatusNotificationResponse) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func NewStatusNotificationResponse() *StatusNotificationResponse {
	return &StatusNotificationResponse{}
}
