package gateway

import "time"

// NodePairs is the node.pair.list payload.
type NodePairs struct {
	Pending []PendingRequest `json:"pending"`
	Paired  []PairedNode     `json:"paired"`
}

// PendingRequest is a node waiting for an operator to approve pairing.
type PendingRequest struct {
	RequestID   string `json:"requestId"`
	NodeID      string `json:"nodeId"`
	DisplayName string `json:"displayName,omitempty"`
	Platform    string `json:"platform,omitempty"`

	// CreatedAtMs is the request time in Unix milliseconds.
	CreatedAtMs int64 `json:"ts,omitempty"`
}

// Name is the display name, falling back to the node id.
func (r PendingRequest) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.NodeID != "" {
		return r.NodeID
	}
	return "unknown"
}

// CreatedAt is zero when the gateway sent no timestamp.
func (r PendingRequest) CreatedAt() time.Time {
	return fromMillis(r.CreatedAtMs)
}

// PairedNode is an approved node.
type PairedNode struct {
	NodeID       string `json:"nodeId"`
	DisplayName  string `json:"displayName,omitempty"`
	Platform     string `json:"platform,omitempty"`
	Token        string `json:"token,omitempty"`
	ApprovedAtMs int64  `json:"approvedAtMs,omitempty"`
}

func (n PairedNode) Name() string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	return "Paired Node"
}

func (n PairedNode) ApprovedAt() time.Time {
	return fromMillis(n.ApprovedAtMs)
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
