package config

// Defaults returns the baseline configuration. Size limits and the
// truncation cut are Telegram's ceilings; the reply strings stay in
// character so internal failures never read like stack traces.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentMessages: 3,
		},
		Telegram: TelegramConfig{
			Retry: RetryConfig{MaxAttempts: 3, BaseDelayS: 1, MaxDelayS: 60},
		},
		Gemini: GeminiConfig{
			Model: "gemini-1.5-flash",
			Retry: RetryConfig{MaxAttempts: 3, BaseDelayS: 1, MaxDelayS: 60},
		},
		Limits: LimitsConfig{
			MaxPromptLen: 4000,
			MaxReplyLen:  4096,
			TruncateAt:   4090,
			Ellipsis:     "...",
		},
		Replies: RepliesConfig{
			Welcome:       "Alright, I'm here. What's the latest gossip?",
			TooLong:       "Whoa, that's a whole essay. Give me the short version.",
			RateLimited:   "Slow mode activated due to high requests. Responses will take some time, please wait.",
			NotConfigured: "Gemini API key not configured. Please set the GEMINI_API_KEY environment variable.",
			GenFailed:     "Sorry, I'm having a moment. Can't think straight. Ask me later.",
			Glitch:        "Ugh, glitched out for a second there. What were we saying?",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
	}
}
