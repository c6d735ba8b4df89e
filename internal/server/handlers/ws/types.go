package ws

import "net/http"

type ClientInfo struct {
	User    string
	IPAddr  string
	Headers http.Header
	Version string
}
