package utils

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// GetInstanceID returns a name for this process, unique among the processes
// sharing one store. Logic:
// 1. Return provided override if not empty.
// 2. Hostname plus a random suffix, so restarts and replicas never collide.
// 3. A bare random id when the hostname is unusable.
func GetInstanceID(override string) string {
	if override != "" {
		return override
	}

	suffix := strings.Split(uuid.NewString(), "-")[0]
	hostname, err := os.Hostname()
	if err == nil && hostname != "" && hostname != "localhost" {
		cleanHost := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
				return r
			}
			return -1
		}, hostname)
		if cleanHost != "" {
			return "azguard-" + cleanHost + "-" + suffix
		}
	}
	return "azguard-" + suffix
}
