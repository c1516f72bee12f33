package api

import "time"

// Limits for API requests
const (
	// MaxRequestBodyBytes caps the size of a posted compose document set
	MaxRequestBodyBytes = 4 << 20

	// DefaultReportLimit is used when GET /api/reports has no limit parameter
	DefaultReportLimit = 20

	// MaxReportLimit caps the limit parameter
	MaxReportLimit = 500

	// DiscoveryTimeout bounds running-project discovery through Docker
	DiscoveryTimeout = 10 * time.Second

	// EventHeartbeat is how often an idle event stream sends a keepalive
	EventHeartbeat = 15 * time.Second
)

// Server timeouts
const (
	ReadTimeout     = 15 * time.Second
	WriteTimeout    = 30 * time.Second
	IdleTimeout     = 60 * time.Second
	ShutdownTimeout = 10 * time.Second
)
