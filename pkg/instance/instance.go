package instance

import "github.com/angelmondragon/storefront-backend/pkg/env"

// GetID identifies this process in logs: INSTANCE_ID, then the platform's
// dyno or host name, then "local".
func GetID() string {
	for _, key := range []string{"INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := env.Get(key, ""); id != "" {
			return id
		}
	}
	return "local"
}
