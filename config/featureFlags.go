package config

// MatchResultHistoryEnabled appends an audit row for every published match
// result in addition to the upserted canonical row.
//
// Set via env:
// - MATCH_RESULT_HISTORY=true
func MatchResultHistoryEnabled() bool {
	return boolFromEnv("MATCH_RESULT_HISTORY", false)
}

// MatchPubSubPushEnabled exposes the invoice-linked push endpoint.
//
// Set via env:
// - ENABLE_MATCH_PUBSUB_PUSH_ENDPOINT=true
func MatchPubSubPushEnabled() bool {
	return boolFromEnv("ENABLE_MATCH_PUBSUB_PUSH_ENDPOINT", false)
}

func SkipMigrations() bool {
	return boolFromEnv("SKIP_MIGRATIONS", false)
}

// MatchSchedulerEnabled turns the in-process cron sweep on or off (default on).
func MatchSchedulerEnabled() bool {
	return boolFromEnv("MATCH_SCHEDULER_ENABLED", true)
}
