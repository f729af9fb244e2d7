package engine

import (
	"os"
	"strings"
)

// EnvEntityExpansion is the rollback environment variable; "0" or "false"
// disables entity expansion process-wide without a code change.
const EnvEntityExpansion = "REHYDRATE_USE_ENTITY_EXPANSION"

// EntityExpansionEnabled resolves the expansion feature flag fresh on every
// call: CLI override first, then environment, then default enabled. Disable
// wins wherever signals conflict, keeping rollback deterministic during an
// incident. The environment is re-read each time, so a running process can be
// toggled externally.
func EntityExpansionEnabled(cliDisabled bool) bool {
	if cliDisabled {
		return false
	}
	switch strings.ToLower(os.Getenv(EnvEntityExpansion)) {
	case "0", "false", "no":
		return false
	}
	return true
}
