package internal

import (
	"chargeset/internal/config"
	"chargeset/models"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionLog              = "sys_log"
	collectionReservations     = "reservation"
	collectionChargingProfiles = "chargingProfile"
	collectionTransactions     = "transaction"
	collectionEvses            = "evse"
	collectionStations         = "stations"
	collectionSubscriptions    = "subscriptions"
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
	return client, nil
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, err
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	err := connection.Disconnect(m.ctx)
	if err != nil {
		log.Println("mongodb disconnect error;", err)
	}
}

func (m *MongoDB) WriteLogMessage(data Data) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)
	collection := connection.Database(m.database).Collection(collectionLog)
	_, err = collection.InsertOne(m.ctx, data)
	if err != nil {
		return err
	}
	return nil
}

var nonTerminalStatuses = bson.A{
	models.ReservationStatusActive,
	models.ReservationStatusWaiting,
	models.ReservationStatusOngoing,
}

// GetReservationByToken resolves an identity token to a reservation. The most
// recently created non-terminal reservation wins; when the token has only
// terminal reservations the latest of those is returned so its status still
// maps to a verdict. A missing token yields (nil, nil).
func (m *MongoDB) GetReservationByToken(idToken string) (*models.Reservation, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionReservations)
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var reservation models.Reservation
	filter := bson.D{{Key: "idToken", Value: idToken}, {Key: "reservationStatus", Value: bson.D{{Key: "$in", Value: nonTerminalStatuses}}}}
	err = collection.FindOne(m.ctx, filter, opts).Decode(&reservation)
	if err == nil {
		return &reservation, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	filter = bson.D{{Key: "idToken", Value: idToken}}
	err = collection.FindOne(m.ctx, filter, opts).Decode(&reservation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (m *MongoDB) GetReservation(reservationId string) (*models.Reservation, error) {
	oid, err := primitive.ObjectIDFromHex(reservationId)
	if err != nil {
		return nil, fmt.Errorf("invalid reservation id %s: %w", reservationId, err)
	}
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionReservations)
	var reservation models.Reservation
	err = collection.FindOne(m.ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&reservation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// StartReservation moves a reservation from WAITING to ONGOING. The status
// condition on the filter is what keeps two racing pipelines from starting
// the same session twice: the loser matches no document and gets
// ErrNotEligible.
func (m *MongoDB) StartReservation(reservationId string) error {
	return m.transitionReservation(reservationId, models.ReservationStatusWaiting, models.ReservationStatusOngoing)
}

// CompleteReservation moves a reservation from ONGOING to COMPLETED, the
// single terminal-success exit path.
func (m *MongoDB) CompleteReservation(reservationId string) error {
	return m.transitionReservation(reservationId, models.ReservationStatusOngoing, models.ReservationStatusCompleted)
}

func (m *MongoDB) transitionReservation(reservationId, from, to string) error {
	oid, err := primitive.ObjectIDFromHex(reservationId)
	if err != nil {
		return fmt.Errorf("invalid reservation id %s: %w", reservationId, err)
	}
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionReservations)
	filter := bson.D{{Key: "_id", Value: oid}, {Key: "reservationStatus", Value: from}}
	update := bson.M{"$set": bson.M{"reservationStatus": to}}
	result, err := collection.UpdateOne(m.ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotEligible
	}
	return nil
}

func (m *MongoDB) GetChargingProfile(reservationId string) (*models.ChargingProfile, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionChargingProfiles)
	var profile models.ChargingProfile
	err = collection.FindOne(m.ctx, bson.D{{Key: "reservationId", Value: reservationId}}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveChargingProfile overwrites the profile bound to the reservation, or
// inserts it when absent. Profiles are read-only once a session runs against
// them, so an upsert keyed by reservation id is sufficient.
func (m *MongoDB) SaveChargingProfile(profile *models.ChargingProfile) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionChargingProfiles)
	filter := bson.D{{Key: "reservationId", Value: profile.ReservationId}}
	update := bson.M{"$set": profile}
	opts := options.Update().SetUpsert(true)
	_, err = collection.UpdateOne(m.ctx, filter, update, opts)
	return err
}

func (m *MongoDB) AddTransaction(transaction *models.Transaction) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionTransactions)
	_, err = collection.InsertOne(m.ctx, transaction)
	return err
}

func (m *MongoDB) UpdateTransactionTotals(reservationId string, cost, energyWh int) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionTransactions)
	filter := bson.D{{Key: "reservationId", Value: reservationId}, {Key: "transactionStatus", Value: models.TransactionStatusCharging}}
	update := bson.M{"$set": bson.M{"cost": cost, "energyWh": energyWh}}
	_, err = collection.UpdateOne(m.ctx, filter, update)
	return err
}

func (m *MongoDB) CompleteTransaction(reservationId string, endTime time.Time) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionTransactions)
	filter := bson.D{{Key: "reservationId", Value: reservationId}, {Key: "transactionStatus", Value: models.TransactionStatusCharging}}
	update := bson.M{"$set": bson.M{
		"transactionStatus": models.TransactionStatusCompleted,
		"endTime":           endTime,
	}}
	result, err := collection.UpdateOne(m.ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotEligible
	}
	return nil
}

func (m *MongoDB) SetEvseStatus(evseId string, status string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionEvses)
	filter := bson.D{{Key: "evseId", Value: evseId}}
	update := bson.M{"$set": bson.M{"evseStatus": status, "lastUpdated": time.Now()}}
	_, err = collection.UpdateOne(m.ctx, filter, update)
	return err
}

func (m *MongoDB) SetStationEvseStatus(stationId string, status string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionEvses)
	filter := bson.D{{Key: "stationId", Value: stationId}}
	update := bson.M{"$set": bson.M{"evseStatus": status, "lastUpdated": time.Now()}}
	_, err = collection.UpdateMany(m.ctx, filter, update)
	return err
}

func (m *MongoDB) GetEvses() ([]models.Evse, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionEvses)
	cursor, err := collection.Find(m.ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var evses []models.Evse
	if err = cursor.All(m.ctx, &evses); err != nil {
		return nil, err
	}
	return evses, nil
}

func (m *MongoDB) GetStation(stationId string) (*models.Station, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionStations)
	var station models.Station
	err = collection.FindOne(m.ctx, bson.D{{Key: "stationId", Value: stationId}}).Decode(&station)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &station, nil
}

// GetSubscriptions returns all subscriptions
func (m *MongoDB) GetSubscriptions() ([]models.UserSubscription, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionSubscriptions)
	cursor, err := collection.Find(m.ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var subscriptions []models.UserSubscription
	if err = cursor.All(m.ctx, &subscriptions); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// AddSubscription adds a new subscription
func (m *MongoDB) AddSubscription(subscription *models.UserSubscription) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionSubscriptions)
	filter := bson.D{{Key: "user_id", Value: subscription.UserID}}
	update := bson.M{"$set": subscription}
	opts := options.Update().SetUpsert(true)
	_, err = collection.UpdateOne(m.ctx, filter, update, opts)
	return err
}

// DeleteSubscription deletes a subscription
func (m *MongoDB) DeleteSubscription(subscription *models.UserSubscription) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionSubscriptions)
	filter := bson.D{{Key: "user_id", Value: subscription.UserID}}
	_, err = collection.DeleteOne(m.ctx, filter)
	return err
}
