package ocpp

import "chargeset/types"

const AuthorizeFeatureName = "Authorize"

type AuthorizeRequest struct {
	IdToken types.IdToken `json:"idToken" validate:"required"`
}

type AuthorizeResponse struct {
	IdTokenInfo *types.IdTokenInfo `json:"idTokenInfo" validate:"required"`
	Context     *SessionContext    `json:"customData,omitempty"`
}

func (r *AuthorizeRequest) GetFeatureName() string {
	return AuthorizeFeatureName
}

func (r *AuthorizeResponse) GetFeatureName() string {
	return AuthorizeFeatureName
}

func NewAuthorizeRequest(token string) *AuthorizeRequest {
	return &AuthorizeRequest{IdToken: *types.NewIdToken(token)}
}

func NewAuthorizeResponse(idTokenInfo *types.IdTokenInfo) *AuthorizeResponse {
	return &AuthorizeResponse{IdTokenInfo: idTokenInfo}
}
