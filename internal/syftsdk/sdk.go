package syftsdk

import (
	"fmt"

	"github.com/imroc/req/v3"
)

// SyftSDK is the client of the vault server API
type SyftSDK struct {
	client *req.Client
	config *SyftSDKConfig
	Files  *FilesAPI
	Events *EventsAPI
}

func New(config *SyftSDKConfig) (*SyftSDK, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("sdk: invalid config: %w", err)
	}

	client := newHTTPClient(config)
	return &SyftSDK{
		client: client,
		config: config,
		Files:  newFilesAPI(client),
		Events: newEventsAPI(config),
	}, nil
}

// Close terminates the events connection
func (s *SyftSDK) Close() {
	s.Events.Close()
}
