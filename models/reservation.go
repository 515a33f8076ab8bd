package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ReservationStatusActive    = "ACTIVE"
	ReservationStatusWaiting   = "WAITING"
	ReservationStatusOngoing   = "ONGOING"
	ReservationStatusExpired   = "EXPIRED"
	ReservationStatusCompleted = "COMPLETED"
	ReservationStatusCancelled = "CANCELLED"
)

type Reservation struct {
	Id             primitive.ObjectID `json:"reservation_id" bson:"_id,omitempty"`
	StationId      string             `json:"stationId" bson:"stationId"`
	EvseId         string             `json:"evseId" bson:"evseId"`
	ConnectorId    int                `json:"connectorId" bson:"connectorId"`
	UserId         string             `json:"userId" bson:"userId"`
	IdToken        string             `json:"idToken" bson:"idToken"`
	StartTime      time.Time          `json:"startTime" bson:"startTime"`
	EndTime        time.Time          `json:"endTime" bson:"endTime"`
	TargetEnergyWh int                `json:"targetEnergyWh" bson:"targetEnergyWh"`
	Cost           int                `json:"cost" bson:"cost"`
	Status         string             `json:"reservationStatus" bson:"reservationStatus"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
}

// IsTerminal reports whether the reservation reached a state it can never
// leave; terminal reservations are kept for audit and never deleted.
func (r *Reservation) IsTerminal() bool {
	switch r.Status {
	case ReservationStatusExpired, ReservationStatusCompleted, ReservationStatusCancelled:
		return true
	}
	return false
}
