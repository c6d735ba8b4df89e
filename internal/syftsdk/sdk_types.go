package syftsdk

import (
	"fmt"
	"runtime"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftvault/internal/utils"
	"github.com/openmined/syftvault/internal/version"
)

const (
	HeaderUserAgent    = "User-Agent"
	HeaderSyftVersion  = "X-Syft-Version"
	HeaderSyftUser     = "X-Syft-User"
	HeaderSyftDeviceId = "X-Syft-Device-Id"
)

var SyftVaultUserAgent = fmt.Sprintf("SyftVault/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// newHTTPClient returns a client with the common headers, codec and retries set.
// Only idempotent requests are retried, see retryable.
func newHTTPClient(cfg *SyftSDKConfig) *req.Client {
	return req.C().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30*time.Second).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetCommonRetryCondition(retryable).
		SetUserAgent(SyftVaultUserAgent).
		SetCommonHeader(HeaderSyftVersion, version.Version).
		SetCommonHeader(HeaderSyftDeviceId, utils.HWID).
		SetCommonHeader(HeaderSyftUser, cfg.User).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUmarshal)
}

// retryable retries transport errors and 5xx of GET requests. Mutations are
// never resent, the sync engine decides what to do with a failed one.
func retryable(resp *req.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != "GET" {
		return false
	}
	if err != nil {
		return true
	}
	return resp.StatusCode >= 500
}
