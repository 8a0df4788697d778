package utils

import (
	"time"
)

type contextKey string

// Request scoped context keys
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Telephony constants
const (
	// MachineDetectionTimeout is the number of seconds the platform listens
	// before classifying the callee
	MachineDetectionTimeout = 3

	// GatherTimeout is how long a prompt waits for a digit, in seconds
	GatherTimeout = 10

	// DefaultRequestTimeout bounds every webhook handler
	DefaultRequestTimeout = 30 * time.Second

	// UnknownLeadName is used for leads created from inbound traffic
	UnknownLeadName = "Unknown"
)
