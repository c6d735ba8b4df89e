package utils

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

// HWID is a per-machine identifier, hashed with the app name so the raw machine id never leaves the host
var HWID = resolveHWID()

func resolveHWID() string {
	id, err := machineid.ProtectedID("syftvault")
	if err != nil || id == "" {
		return uuid.NewString()
	}
	if len(id) > 16 {
		id = id[:16]
	}
	return id
}
