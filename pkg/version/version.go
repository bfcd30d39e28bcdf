// Package version carries build-time version metadata for llmgate.
package version

// AppName identifies this service to MCP servers and prefixes Full.
const AppName = "llmgate"

// Set via -ldflags at build time; defaulted here for local/dev builds.
var (
	GitCommit = "dev"
	BuildDate = "unknown"
)

// Full returns a human-readable version string for health responses.
func Full() string {
	return AppName + "@" + GitCommit
}
