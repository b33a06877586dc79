// Package activity records notable runtime events (banner resolutions,
// deletions, manifest hits) to the persistent log, split by browsing mode.
package activity

import (
	"cookiesentinel/internal/logging"
	"cookiesentinel/internal/store"
)

// Browsing modes. Entries from private contexts stay in their own log.
const (
	ModeNormal    = "normal"
	ModeIncognito = "incognito"
)

// Action names as they appear in the log.
const (
	ActionManifestDetected = "manifest_detected"
	ActionBannerHandled    = "banner_handled"
	ActionCookiesDeleted   = "cookies_deleted"
	ActionTCFDetected      = "tcf_detected"
	ActionReviewQueued     = "review_queued"
)

// Recorder appends activity entries for a fixed browsing mode.
type Recorder struct {
	store *store.Store
	mode  string
}

// NewRecorder builds a recorder. An empty mode means normal browsing.
func NewRecorder(st *store.Store, mode string) *Recorder {
	if mode == "" {
		mode = ModeNormal
	}
	return &Recorder{store: st, mode: mode}
}

// Record appends one entry. Failures are logged and swallowed: the log is
// informational and must never interrupt enforcement.
func (r *Recorder) Record(action, domain, detail string) {
	err := r.store.AppendActivity(store.ActivityEntry{
		Mode:   r.mode,
		Action: action,
		Domain: domain,
		Detail: detail,
	})
	if err != nil {
		logging.Activity("record %s failed: %v", action, err)
		return
	}
	logging.Activity("[%s] %s %s %s", r.mode, action, domain, detail)
}

// Recent returns up to limit entries for the recorder's mode, newest first.
func (r *Recorder) Recent(limit int) ([]store.ActivityEntry, error) {
	return r.store.ListActivity(r.mode, limit)
}
