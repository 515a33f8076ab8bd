package models

import (
	"chargeset/types"
	"time"
)

// ChargingProfile is the power schedule attached 1:1 to a reservation. It is
// produced by the fee optimizer or the booking workflow and is read-only for
// the session pipeline; the execution loop only snapshots it into transactions.
type ChargingProfile struct {
	ReservationId       string                         `json:"reservationId" bson:"reservationId"`
	ChargingProfileKind types.ChargingProfileKindType  `json:"chargingProfileKind" bson:"chargingProfileKind"`
	StartSchedule       time.Time                      `json:"startSchedule" bson:"startSchedule"`
	ChargingSchedules   []types.ChargingSchedulePeriod `json:"chargingSchedules" bson:"chargingSchedules"`
}
