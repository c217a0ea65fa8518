// Package provenance probes the local machine's identity for the
// Source record attached to every locally-scanned conversation: a host
// label (the raw hostname), a platform string, and a stable-but-opaque
// machine id derived by hashing the hostname, so machine_id alone does
// not reveal the host while rescans on the same host still yield the
// same id.
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
)

// Local computes the sources row for the reserved "local" source id:
// hostname as the display label, GOOS/GOARCH as the
// platform hint, and a SHA-256 digest of the hostname as a stable machine
// identifier that never leaves the raw hostname in the exported database.
func Local() Record {
	host, err := os.Hostname()
	if err != nil {
		host = ""
	}
	return Record{
		HostLabel: host,
		MachineID: machineID(host),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Record is the provenance facet of a sources row this package can derive
// without any connector-specific input.
type Record struct {
	HostLabel string
	MachineID string
	Platform  string
}

// machineID derives a stable, non-reversible identifier from the host's
// name. It is intentionally not a real hardware/OS machine id (e.g.
// /etc/machine-id) — those are platform-specific and not always readable
// — but it is stable across scans on the same machine and never exposes
// the hostname itself to anything that only sees machine_id.
func machineID(host string) string {
	if host == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(host))
	return hex.EncodeToString(sum[:])[:16]
}
