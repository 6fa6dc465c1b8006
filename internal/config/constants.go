package config

import "time"

// Constants defining default values for application configuration
const (
	DefaultCommunitiesCSVPath = "./communities.csv"
	DefaultDBPath             = "./valuations.db"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces
	DefaultPublicURL  = "http://localhost:8080"

	DefaultAnthropicModel     = "claude-haiku-4-5-20251001"
	DefaultAnthropicMaxTokens = 1024

	DefaultRedditBaseURL   = "https://www.reddit.com"
	DefaultRedditUserAgent = "thriftscan-valuator/1.0"
	DefaultListingLimit    = 25
	DefaultSourceMode      = "json"
	DefaultSourceRate      = 1.0 // Listing requests per second

	DefaultInterval       = 60 // Minutes between automation runs, 0 for one-shot
	DefaultPostDelay      = 2 * time.Second
	DefaultPostAttempts   = 3
	DefaultRetryDelay     = 5 * time.Second
	DefaultFetchAttempts  = 3
	DefaultRequestTimeout = 30 * time.Second

	DefaultLogLevel = "info"
)

// DefaultCommunities are watched when neither a CSV nor
// VALUATOR_COMMUNITIES names any.
var DefaultCommunities = []string{"ThriftStoreHauls", "Flipping", "VintageFashion"}
