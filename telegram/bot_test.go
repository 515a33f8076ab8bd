package telegram

import (
	"strings"
	"testing"
	"time"

	"chargeset/internal"
	"chargeset/models"
)

func newTestBot() *TgBot {
	return &TgBot{
		subscriptions: make(map[int]models.UserSubscription),
		event:         make(chan MessageContent, 1),
		send:          make(chan MessageContent, 1),
	}
}

func TestTransactionStopMessageRendersCost(t *testing.T) {
	bot := newTestBot()

	bot.OnTransactionStop(&internal.EventMessage{
		Type:          "TransactionStop",
		StationId:     "ST-001",
		EvseId:        "EVSE-1",
		Time:          time.Now(),
		UserId:        "user-1",
		IdToken:       "tok-A",
		ReservationId: "650000000000000000000001",
		Status:        "COMPLETED",
		Cost:          10234,
		Info:          "EnergyLimitReached",
	})

	select {
	case msg := <-bot.event:
		if !strings.Contains(msg.Text, `Cost: 102\.34`) {
			t.Errorf("message does not render the cost as a price:\n%s", msg.Text)
		}
	default:
		t.Fatal("no event message was queued")
	}
}

func TestStatusMessageCountsSubscriptions(t *testing.T) {
	bot := newTestBot()
	bot.subscriptions[7] = models.UserSubscription{UserID: 7, User: "seven"}

	msg := bot.composeStatusMessage()
	if !strings.Contains(msg, "Active subscriptions: 1") {
		t.Errorf("unexpected status message:\n%s", msg)
	}
}
