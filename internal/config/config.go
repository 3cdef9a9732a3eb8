// Package config provides configuration types and loading for cake.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Watchdog, Shim, Recall, Escalation, Sources, Notify.
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Watchdog   WatchdogConfig   `json:"watchdog"`
	Shim       ShimConfig       `json:"shim"`
	Recall     RecallConfig     `json:"recall"`
	Escalation EscalationConfig `json:"escalation"`
	Sources    SourcesConfig    `json:"sources"`
	Notify     NotifyConfig     `json:"notify"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	DBFile  string `json:"dbFile" envconfig:"DB_FILE"`
}

// ---------------------------------------------------------------------------
// Watchdog – stream error detection
// ---------------------------------------------------------------------------

// WatchdogConfig groups stream monitoring settings.
type WatchdogConfig struct {
	DetectionLatencyBudgetMs int      `json:"detectionLatencyBudgetMs" envconfig:"DETECTION_LATENCY_BUDGET_MS"`
	ErrorSignatures          []string `json:"errorSignatures"`
	LineBuffer               int      `json:"lineBuffer" envconfig:"LINE_BUFFER"`
}

// DetectionBudget returns the detection latency budget as a duration.
func (w WatchdogConfig) DetectionBudget() time.Duration {
	return time.Duration(w.DetectionLatencyBudgetMs) * time.Millisecond
}

// ---------------------------------------------------------------------------
// Shim – synchronous command gate
// ---------------------------------------------------------------------------

// ShimConfig groups command validation settings.
type ShimConfig struct {
	CommandValidationBudgetMs int      `json:"commandValidationBudgetMs" envconfig:"COMMAND_VALIDATION_BUDGET_MS"`
	DangerousCommandPatterns  []string `json:"dangerousCommandPatterns"`
	RepeatDenyThreshold       int      `json:"repeatDenyThreshold" envconfig:"REPEAT_DENY_THRESHOLD"`
}

// ValidationBudget returns the command validation budget as a duration.
func (s ShimConfig) ValidationBudget() time.Duration {
	return time.Duration(s.CommandValidationBudgetMs) * time.Millisecond
}

// ---------------------------------------------------------------------------
// Recall – TTL-bounded error memory
// ---------------------------------------------------------------------------

// RecallConfig groups RecallDB settings.
type RecallConfig struct {
	TTLHours      int           `json:"ttlHours" envconfig:"TTL_HOURS"`
	PurgeInterval time.Duration `json:"purgeInterval" envconfig:"PURGE_INTERVAL"`
	WriteRetries  int           `json:"writeRetries" envconfig:"WRITE_RETRIES"`
}

// TTL returns the record time-to-live as a duration.
func (r RecallConfig) TTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}

// ---------------------------------------------------------------------------
// Escalation – when to give up local autonomy
// ---------------------------------------------------------------------------

// EscalationConfig groups escalation policy settings.
type EscalationConfig struct {
	RepeatThreshold int           `json:"repeatThreshold" envconfig:"REPEAT_THRESHOLD"`
	MaxAutoRetries  int           `json:"maxAutoRetries" envconfig:"MAX_AUTO_RETRIES"`
	StallAfter      time.Duration `json:"stallAfter" envconfig:"STALL_AFTER"`
	DeliveryRetries int           `json:"deliveryRetries" envconfig:"DELIVERY_RETRIES"`
}

// ---------------------------------------------------------------------------
// Sources – where transcript lines come from
// ---------------------------------------------------------------------------

// SourcesConfig contains transcript source configurations.
type SourcesConfig struct {
	File  FileSourceConfig  `json:"file"`
	Kafka KafkaSourceConfig `json:"kafka"`
}

// FileSourceConfig configures the append-only transcript file follower.
type FileSourceConfig struct {
	Enabled bool   `json:"enabled" envconfig:"FILE_ENABLED"`
	Path    string `json:"path" envconfig:"FILE_PATH"`
}

// KafkaSourceConfig configures the Kafka transcript consumer.
type KafkaSourceConfig struct {
	Enabled       bool   `json:"enabled" envconfig:"KAFKA_ENABLED"`
	Brokers       string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic         string `json:"topic" envconfig:"KAFKA_TOPIC"`
	ConsumerGroup string `json:"consumerGroup" envconfig:"KAFKA_CONSUMER_GROUP"`
}

// ---------------------------------------------------------------------------
// Notify – escalation notice delivery
// ---------------------------------------------------------------------------

// NotifyConfig contains escalation delivery settings.
type NotifyConfig struct {
	Slack SlackNotifyConfig `json:"slack"`
}

// SlackNotifyConfig configures Slack delivery of escalation notices.
type SlackNotifyConfig struct {
	Enabled bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	Token   string `json:"token" envconfig:"SLACK_TOKEN"`
	Channel string `json:"channel" envconfig:"SLACK_CHANNEL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.cake",
			DBFile:  "recall.db",
		},
		Watchdog: WatchdogConfig{
			DetectionLatencyBudgetMs: 100,
			LineBuffer:               256,
		},
		Shim: ShimConfig{
			CommandValidationBudgetMs: 50,
			RepeatDenyThreshold:       2,
		},
		Recall: RecallConfig{
			TTLHours:      24,
			PurgeInterval: 5 * time.Minute,
			WriteRetries:  3,
		},
		Escalation: EscalationConfig{
			RepeatThreshold: 3,
			MaxAutoRetries:  5,
			StallAfter:      30 * time.Minute,
			DeliveryRetries: 5,
		},
		Sources: SourcesConfig{
			Kafka: KafkaSourceConfig{
				Brokers:       "localhost:9092",
				Topic:         "agent-transcript",
				ConsumerGroup: "cake",
			},
		},
	}
}
