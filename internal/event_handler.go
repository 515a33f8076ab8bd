package internal

import "time"

type EventHandler interface {
	OnAuthorize(event *EventMessage)
	OnTransactionStart(event *EventMessage)
	OnTransactionStop(event *EventMessage)
	OnStatusNotification(event *EventMessage)
}

type EventMessage struct {
	Type          string      `json:"type" bson:"type"`
	StationId     string      `json:"station_id" bson:"station_id"`
	EvseId        string      `json:"evse_id" bson:"evse_id"`
	ConnectorId   int         `json:"connector_id" bson:"connector_id"`
	Time          time.Time   `json:"time" bson:"time"`
	UserId        string      `json:"user_id" bson:"user_id"`
	IdToken       string      `json:"id_token" bson:"id_token"`
	ReservationId string      `json:"reservation_id" bson:"reservation_id"`
	Status        string      `json:"status" bson:"status"`
	Cost          int         `json:"cost" bson:"cost"`
	Info          string      `json:"info" bson:"info"`
	Payload       interface{} `json:"payload" bson:"payload"`
}
