package syftsdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftvault/internal/api"
)

var (
	ErrNoServerURL      = errors.New("sdk: server url missing")
	ErrInvalidServerURL = errors.New("sdk: invalid server url")
	ErrNoUser           = errors.New("sdk: user missing")

	ErrEventsNotConnected = errors.New("sdk: events: not connected")
)

// APIError is the error body returned by the server. It unwraps to the api
// sentinel of its code.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return api.ErrorForCode(e.Code)
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok && err.Code != "" {
			return fmt.Errorf("%s %w", operation, err)
		}
		return fmt.Errorf("api error: %s %s", operation, resp.Status)
	}

	return nil
}
