package config

import "time"

// Constants defining default values for application configuration
const (
	DefaultConfigPath = "configs/default.yaml"
	DefaultStateDir   = "state"
	DefaultSeenFile   = "seen.json"
	DefaultSeenDBFile = "seen.db"

	DefaultPersonaName = "Traveler"

	DefaultDailyLimit       = 3
	DefaultMinScore         = 0.65
	DefaultDedupeWindowDays = 14

	DefaultWebhookPort      = 8787
	DefaultWebhookPath      = "/webhook"
	DefaultWebhookMaxBodyKB = 512

	DefaultReceiverPort      = 8788
	DefaultReceiverMaxBodyKB = 1024

	DefaultFetchWorkers      = 4
	DefaultFetchTimeout      = 15 * time.Second
	DefaultFetchMaxItems     = 100
	DefaultFetchMaxAge       = 14 * 24 * time.Hour
	DefaultFetchHostInterval = 500 * time.Millisecond

	DefaultLogLevel = "info"

	BackendFile   = "file"
	BackendSQLite = "sqlite"

	SourceTypeRSS = "rss"
)

// DefaultTags are attached to notes when neither config nor event supplies tags.
var DefaultTags = []string{"inbox", "traveler"}
