package models

// Station holds per-station tariff parameters for the ESS-assisted
// high-power tier.
type Station struct {
	StationId string `json:"stationId" bson:"stationId"`
	Title     string `json:"title" bson:"title"`
	EssFee    int    `json:"essFee" bson:"essFee"`
	EssPower  int    `json:"essPower" bson:"essPower"`
}
