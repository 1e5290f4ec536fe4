package bybit

import (
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// asServerResponse extracts the SDK's reply envelope. Every endpoint routes
// its reply through here so the envelope handling lives in one place.
func asServerResponse(response interface{}) (*bybit_api.ServerResponse, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	return serverResp, nil
}

// checkResponse extracts the envelope and surfaces a non-zero retCode as a
// typed API error.
func checkResponse(response interface{}) (*bybit_api.ServerResponse, error) {
	serverResp, err := asServerResponse(response)
	if err != nil {
		return nil, err
	}
	if apiErr := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); apiErr != nil {
		return nil, apiErr
	}
	return serverResp, nil
}
