// Package version provides version information for the oracle node.
package version

// Version is the current version of the push-oracle node.
const Version = "0.4.1"

// AgentString returns the full agent string with versioning.
// Format: @charli3/push-oracle-node@v{version}
func AgentString() string {
	return "@charli3/push-oracle-node@v" + Version
}
