package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

// SecretCacheTTL bounds how long a fetched secret bundle is served from
// memory before the store is consulted again.
const SecretCacheTTL = 15 * time.Minute

// RequiredSecretKeys is the fixed set a secret bundle must carry; a bundle
// missing any of them is rejected as a fetch failure.
var RequiredSecretKeys = []string{
	"TMX_API_KEY",
	"TMX_ORG_ID",
	"OAK_API_KEY",
}

const (
	// DedupWindow is the default suppression window for repeated requests
	// with an identical fingerprint.
	DedupWindow = 10 * time.Second

	// DedupSweepInterval is how often expired fingerprints are swept.
	DedupSweepInterval = 30 * time.Second
)

const (
	DefaultCheckoutTopic = "checkout_events"

	// MaxBatchSize bounds how many queued messages a consumer fetches
	// before handing the batch off.
	MaxBatchSize = 10

	// MaxBatchConcurrency bounds in-flight message handling within a batch.
	MaxBatchConcurrency = 10

	// MaxReceiveAttempts is the delivery cap before a message is
	// dead-lettered.
	MaxReceiveAttempts = 3
)

const (
	// StoragePrefix is the stage prefix all persisted object keys share.
	StoragePrefix = "demo"

	StorageContentType = "application/json"
)

const (
	SessionIDMaxLength = 255
)

const (
	// WarmupSource marks a request that only prefetches the secret cache.
	WarmupSource = "warmup"
)

const (
	ShutdownTimeout = 5 * time.Second
)
