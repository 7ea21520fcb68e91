package enums

import "fmt"

// RoutingStatus tracks whether an order routing has resolved a winner.
type RoutingStatus string

const (
	RoutingStatusPendingResponses RoutingStatus = "pending_responses"
	RoutingStatusVendorAccepted   RoutingStatus = "vendor_accepted"
	RoutingStatusNoWinner         RoutingStatus = "no_winner"
)

var validRoutingStatuses = []RoutingStatus{
	RoutingStatusPendingResponses,
	RoutingStatusVendorAccepted,
	RoutingStatusNoWinner,
}

// IsValid reports whether the value is a known RoutingStatus.
func (s RoutingStatus) IsValid() bool {
	for _, candidate := range validRoutingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CandidateResponse records how a notified wholesaler answered a routing.
type CandidateResponse string

const (
	CandidateResponsePending  CandidateResponse = "pending"
	CandidateResponseAccepted CandidateResponse = "accepted"
	CandidateResponseRejected CandidateResponse = "rejected"
	CandidateResponseTimeout  CandidateResponse = "timeout"
)

var validCandidateResponses = []CandidateResponse{
	CandidateResponsePending,
	CandidateResponseAccepted,
	CandidateResponseRejected,
	CandidateResponseTimeout,
}

// IsValid reports whether the value is a known CandidateResponse.
func (r CandidateResponse) IsValid() bool {
	for _, candidate := range validCandidateResponses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseCandidateResponse converts raw input into a CandidateResponse.
func ParseCandidateResponse(value string) (CandidateResponse, error) {
	for _, candidate := range validCandidateResponses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid candidate response %q", value)
}
