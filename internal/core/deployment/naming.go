package deployment

import (
	"fmt"
	"strings"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ContainerName generates a container name for a service in a host run.
// Pattern: {slug(serviceName)}-{shortRunID}
//
// The run ID is shortened to its first 8 characters so names stay readable
// in `docker ps` while remaining unique per run.
//
// Example:
//
//	ContainerName("550e8400-e29b-41d4-a716-446655440000", "cicd") // returns "cicd-550e8400"
func ContainerName(runID, serviceName string) string {
	return fmt.Sprintf("%s-%s", Slugify(serviceName), ShortID(runID))
}

// ShortID truncates an ID to 8 characters.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Slugify converts a service name into a fragment Docker accepts in a
// container name.
//
//   - Lowercase letters, digits and hyphens are kept
//   - Uppercase letters are lowercased
//   - Spaces, underscores and dots become hyphens
//   - All other characters are dropped
//
// A name with nothing left becomes "service".
//
// Example:
//
//	Slugify("CI/CD Runner") // returns "cicd-runner"
//	Slugify("api_v2")       // returns "api-v2"
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ' || r == '_' || r == '.':
			b.WriteByte('-')
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "service"
	}
	return slug
}
