package config

func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8080,
			Path:                   "/events",
			RateLimit:              50,
			Burst:                  100,
			Shards:                 8,
			QueueSize:              100,
			ShutdownTimeoutSeconds: 15,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Store: StoreConfig{
			Driver:             "sqlite",
			SQLitePath:         "~/.teamsrouter/router.db",
			ConversationsTable: "teams_mapping",
			BindingsTable:      "teams_reverse_mapping",
			TenantsTable:       "client_mapping",
			Lock: LockConfig{
				Addr:       "localhost:6379",
				TTLSeconds: 10,
			},
		},
		Teams: TeamsConfig{
			AuthTokenURL:   "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token",
			TimeoutSeconds: 30,
		},
		Ticketing: TicketingConfig{
			Sink:           "log",
			TimeoutSeconds: 15,
		},
		Search: SearchConfig{
			Provider:        "static",
			NoResultMessage: "Sorry, I could not find an answer to that. You can talk to an agent for more help.",
		},
		Translation: TranslationConfig{
			Provider:        "none",
			SourceLanguage:  "auto",
			DefaultLanguage: "en",
		},
		Transcript: TranscriptConfig{
			Path:           "/integration/external/v1.0/chat_history/",
			TimeoutSeconds: 30,
		},
		Routing: RoutingConfig{
			FallbackMarker:       "BOT BREAK",
			TerminationPhrase:    "Alright! I'll be around if you need more help",
			TerminationTenant:    "4",
			TerminationDelimiter: "|",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
