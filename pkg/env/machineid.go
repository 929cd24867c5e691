// Package env provides facts about the host running a meter.
package env

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/denisbrodbeck/machineid"
)

// IDLength is the length of a derived meter ID.
const IDLength = 12

// MachineID retrieves the unique ID identifying the machine.
func MachineID() string {
	id, err := machineid.ID()
	if err != nil {
		panic(err)
	}
	return id
}

// MeterID derives a stable meter ID from the machine ID so the raw
// machine ID is never published. Falls back to the hostname when the
// machine ID is not available.
func MeterID(appID string) string {
	if id, err := machineid.ProtectedID(appID); err == nil {
		return id[:IDLength]
	}
	name, err := os.Hostname()
	if err != nil {
		name = "meter"
	}
	return ProtectID(appID, name)
}

// ProtectID hashes an ID with HMAC-SHA256 keyed by appID, like
// machineid.ProtectedID, and returns its first IDLength hex digits.
func ProtectID(appID, id string) string {
	mac := hmac.New(sha256.New, []byte(id))
	mac.Write([]byte(appID))
	return hex.EncodeToString(mac.Sum(nil))[:IDLength]
}
