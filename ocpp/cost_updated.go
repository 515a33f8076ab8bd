package ocpp

const CostUpdatedFeatureName = "CostUpdated"

type CostUpdatedRequest struct {
	TotalCost     int    `json:"totalCost" validate:"gte=0"`
	TotalEnergy   int    `json:"totalEnergy" validate:"gte=0"`
	ReservationId string `json:"reservationId" validate:"required,max=36"`
}

type CostUpdatedResponse struct {
}

func (r *CostUpdatedRequest) GetFeatureName() string {
	return CostUpdatedFeatureName
}

func (r *CostUpdatedResponse) GetFeatureName() string {
	return CostUpdatedFeatureName
}

func NewCostUpdatedResponse() *CostUpdatedResponse {
	return &CostUpdatedResponse{}
}
