package syftsdk

import (
	"net/url"
	"strings"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8080"
)

// SyftSDKConfig is the configuration for the SyftSDK
type SyftSDKConfig struct {
	BaseURL string // BaseURL is required
	User    string // User is required, sent as X-Syft-User
}

func (c *SyftSDKConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidServerURL
	}
	if strings.TrimSpace(c.User) == "" {
		return ErrNoUser
	}
	return nil
}
