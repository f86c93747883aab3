// Package notifications delivers batch events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Per-event toggles in the [notifications] section suppress batch or error
// messages without touching the callers.
package notifications
