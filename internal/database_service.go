package internal

import (
	"chargeset/models"
	"chargeset/utility"
	"time"
)

// ErrNotEligible is returned by the conditional reservation updates when the
// document exists but is not in the required status. For a Started event this
// is the recoverable "already started" outcome of a duplicate-start race.
var ErrNotEligible = utility.Err("reservation is not in an eligible status")

type Database interface {
	WriteLogMessage(data Data) error

	// reservations
	GetReservationByToken(idToken string) (*models.Reservation, error)
	GetReservation(reservationId string) (*models.Reservation, error)
	StartReservation(reservationId string) error
	CompleteReservation(reservationId string) error

	// charging profiles
	GetChargingProfile(reservationId string) (*models.ChargingProfile, error)
	SaveChargingProfile(profile *models.ChargingProfile) error

	// transactions
	AddTransaction(transaction *models.Transaction) error
	UpdateTransactionTotals(reservationId string, cost, energyWh int) error
	CompleteTransaction(reservationId string, endTime time.Time) error

	// evse projection
	SetEvseStatus(evseId string, status string) error
	SetStationEvseStatus(stationId string, status string) error
	GetEvses() ([]models.Evse, error)

	// station tariff parameters
	GetStation(stationId string) (*models.Station, error)

	// telegram subscriptions
	GetSubscriptions() ([]models.UserSubscription, error)
	AddSubscription(subscription *models.UserSubscription) error
	DeleteSubscription(subscription *models.UserSubscription) error
}

type Data interface {
	DataType() string
}
