package entity

import "time"

// NetworkStatus is a connectivity transition
type NetworkStatus struct {
	Offline bool      `json:"offline"`
	At      time.Time `json:"at"`
}

// String returns "offline" or "online"
func (s NetworkStatus) String() string {
	if s.Offline {
		return "offline"
	}
	return "online"
}
