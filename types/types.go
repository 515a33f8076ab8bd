package types

const SubProtocol201 = "ocpp2.0.1"

type AuthorizationStatus string

const (
	AuthorizationStatusAccepted      AuthorizationStatus = "Accepted"
	AuthorizationStatusBlocked       AuthorizationStatus = "Blocked"
	AuthorizationStatusConcurrentTx  AuthorizationStatus = "ConcurrentTx"
	AuthorizationStatusExpired       AuthorizationStatus = "Expired"
	AuthorizationStatusInvalid       AuthorizationStatus = "Invalid"
	AuthorizationStatusNoCredit      AuthorizationStatus = "NoCredit"
	AuthorizationStatusNotAtThisTime AuthorizationStatus = "NotAtThisTime"
	AuthorizationStatusUnknown       AuthorizationStatus = "Unknown"
)

type IdToken struct {
	IdToken string `json:"idToken" validate:"required,max=36"`
	Type    string `json:"type,omitempty" validate:"max=20"`
}

func NewIdToken(token string) *IdToken {
	return &IdToken{IdToken: token, Type: "Central"}
}

type IdTokenInfo struct {
	Status AuthorizationStatus `json:"status" validate:"required,authorizationStatus"`
}

func NewIdTokenInfo(status AuthorizationStatus) *IdTokenInfo {
	return &IdTokenInfo{Status: status}
}

type ChargingProfileKindType string

const (
	ChargingProfileKindAbsolute  ChargingProfileKindType = "ABSOLUTE"
	ChargingProfileKindRecurring ChargingProfileKindType = "RECURRING"
	ChargingProfileKindRelative  ChargingProfileKindType = "RELATIVE"
)

// ChargingSchedulePeriod describes the power limit in force from StartPeriod
// seconds after session start until the next period begins. A period with
// Limit equal to zero means "stop charging" and closes the schedule.
type ChargingSchedulePeriod struct {
	StartPeriod int  `json:"startPeriod" bson:"startPeriod" validate:"gte=0"`
	Limit       int  `json:"limit" bson:"limit" validate:"gte=0"`
	UseESS      bool `json:"useESS" bson:"useESS"`
}
