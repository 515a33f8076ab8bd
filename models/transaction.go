package models

import (
	"chargeset/types"
	"time"
)

const (
	TransactionStatusCharging  = "CHARGING"
	TransactionStatusCompleted = "COMPLETED"
)

// Transaction is the billing record of one physical charging session.
// Immutable once its status reaches COMPLETED.
type Transaction struct {
	StationId               string                         `json:"stationId" bson:"stationId"`
	EvseId                  string                         `json:"evseId" bson:"evseId"`
	ConnectorId             int                            `json:"connectorId" bson:"connectorId"`
	UserId                  string                         `json:"userId" bson:"userId"`
	IdToken                 string                         `json:"idToken" bson:"idToken"`
	ReservationId           string                         `json:"reservationId" bson:"reservationId"`
	StartTime               time.Time                      `json:"startTime" bson:"startTime"`
	EndTime                 time.Time                      `json:"endTime" bson:"endTime"`
	EnergyWh                int                            `json:"energyWh" bson:"energyWh"`
	Cost                    int                            `json:"cost" bson:"cost"`
	Status                  string                         `json:"transactionStatus" bson:"transactionStatus"`
	StartSchedule           time.Time                      `json:"startSchedule" bson:"startSchedule"`
	ChargingProfileSnapshot []types.ChargingSchedulePeriod `json:"chargingProfileSnapshot" bson:"chargingProfileSnapshot"`
}
