package bot

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Cards shown per /review batch
	ReviewBatch int
	// Telegram users allowed to run admin commands such as /import
	AdminUserIDs []int64
	// Long-polling timeout in seconds
	UpdateTimeout int
	Debug         bool
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		ReviewBatch:   1,
		UpdateTimeout: 60,
	}
}
