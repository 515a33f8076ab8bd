package models

import "time"

const (
	EvseStatusAvailable = "AVAILABLE"
	EvseStatusCharging  = "CHARGING"
	EvseStatusOffline   = "OFFLINE"
)

// Evse is an operational-state projection with no identity of its own;
// transitions overwrite the document wholesale.
type Evse struct {
	StationId   string    `json:"stationId" bson:"stationId"`
	EvseId      string    `json:"evseId" bson:"evseId"`
	Status      string    `json:"evseStatus" bson:"evseStatus"`
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
}
