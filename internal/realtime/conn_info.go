package realtime

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// ConnInfo carries connection metadata used for metrics and lifecycle
// events. The ConnID is the opaque connection handle; it is never reused.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	ConnectedAt time.Time
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
