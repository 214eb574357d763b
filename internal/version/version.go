package version

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// DocumentSchema is the design document schema version written by this build.
const DocumentSchema = 2

// SupportedSchemas lists every document schema version the loader accepts.
// Older versions are upgraded by the enumerated migrations in package design.
var SupportedSchemas = []int{1, 2}

// IsSupportedSchema reports whether v can be loaded.
func IsSupportedSchema(v int) bool {
	for _, s := range SupportedSchemas {
		if s == v {
			return true
		}
	}
	return false
}
