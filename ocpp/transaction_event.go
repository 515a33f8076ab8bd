package ocpp

import "chargeset/types"

const TransactionEventFeatureName = "TransactionEvent"

type TransactionEventType string

const (
	TransactionEventStarted TransactionEventType = "Started"
	TransactionEventEnded   TransactionEventType = "Ended"
)

type TransactionInfo struct {
	TransactionId string `json:"transactionId" validate:"required,max=36"`
	StoppedReason string `json:"stoppedReason,omitempty"`
}

type TransactionEventRequest struct {
	EventType       TransactionEventType `json:"eventType" validate:"required"`
	Timestamp       *types.DateTime      `json:"timestamp" validate:"required"`
	TriggerReason   string               `json:"triggerReason" validate:"required"`
	SeqNo           int                  `json:"seqNo" validate:"gte=0"`
	TransactionInfo TransactionInfo      `json:"transactionInfo" validate:"required"`
	Context         *SessionContext      `json:"customData" validate:"required"`
}

type TransactionEventResponse struct {
	IdTokenInfo *types.IdTokenInfo `json:"idTokenInfo,omitempty"`
}

func (r *TransactionEventRequest) GetFeatureName() string {
	return TransactionEventFeatureName
}

func (r *TransactionEventResponse) GetFeatureName() string {
	return TransactionEventFeatureName
}

func NewTransactionEventResponse() *TransactionEventResponse {
	return &TransactionEventResponse{}
}
