// Package instance names the running process in logs.
package instance

import (
	"os"

	"github.com/angelmondragon/partsdesk-backend/pkg/env"
)

const fallbackID = "local"

// GetID prefers PARTSDESK_INSTANCE_ID, then the platform dyno name, then the
// hostname.
func GetID() string {
	if id := env.Get("PARTSDESK_INSTANCE_ID", env.Get("DYNO", "")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
