package dataclient

import "context"

// ClusterStatus is the sync-status composite surfaced by GET /cluster/info
// and GET /node/info (spec.md §6.1). Different metagraph configurations
// expose either AllReady or AllHealthy (spec.md §9 Open Question 2); the
// health gate (internal/orchestrator) treats AllHealthy as equivalent to
// AllReady when AllReady is absent — see DESIGN.md Open Question decision
// #2.
type ClusterStatus struct {
	AllReady   *bool    `json:"allReady,omitempty"`
	AllHealthy *bool    `json:"allHealthy,omitempty"`
	NodeStates []string `json:"nodeStates,omitempty"`
}

// Ready resolves the AllReady/AllHealthy ambiguity per DESIGN.md's Open
// Question decision: prefer AllReady, fall back to AllHealthy.
func (s ClusterStatus) Ready() bool {
	if s.AllReady != nil {
		return *s.AllReady
	}
	if s.AllHealthy != nil {
		return *s.AllHealthy
	}
	return false
}

// Forked reports whether NodeStates disagree, a coarse proxy for "a fork is
// suspected" (spec.md §4.9 step 1).
func (s ClusterStatus) Forked() bool {
	if len(s.NodeStates) < 2 {
		return false
	}
	first := s.NodeStates[0]
	for _, st := range s.NodeStates[1:] {
		if st != first {
			return true
		}
	}
	return false
}

// GetClusterInfo fetches the sync-status composite for this client's
// configured snapshot layer.
func (c *Client) GetClusterInfo(ctx context.Context) (ClusterStatus, error) {
	var st ClusterStatus
	if err := c.getJSON(ctx, "/cluster/info", &st); err != nil {
		return ClusterStatus{}, err
	}
	return st, nil
}
