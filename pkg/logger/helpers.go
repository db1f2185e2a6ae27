package logger

import (
	"time"
)

// LogListingPage logs the result of one listing page
func LogListingPage(l Logger, page int, url string, added, total int) {
	l.InfoWithFields("Listing page collected", map[string]interface{}{
		"page":  page,
		"url":   url,
		"new":   added,
		"total": total,
	})
}

// LogDownload logs download outcomes
func LogDownload(l Logger, filename string, attempt int, size int64, err error) {
	fields := map[string]interface{}{
		"file":    filename,
		"attempt": attempt,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Download attempt failed", fields)
		return
	}
	fields["bytes"] = size
	l.InfoWithFields("Download completed", fields)
}

// LogBackoff logs a retry delay decision
func LogBackoff(l Logger, filename, reason string, attempt int, delay time.Duration, authStreak int) {
	l.WarnWithFields("Backing off", map[string]interface{}{
		"file":        filename,
		"reason":      reason,
		"attempt":     attempt,
		"delay":       delay.Round(100 * time.Millisecond).String(),
		"auth_streak": authStreak,
	})
}

// LogRotation logs a session rotation
func LogRotation(l Logger, reason string, oldID, newID string) {
	l.InfoWithFields("Session rotated", map[string]interface{}{
		"reason":      reason,
		"old_session": oldID,
		"new_session": newID,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l.WithField("component", component).InfoWithFields("Component started", config)
}
