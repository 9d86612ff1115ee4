// Package entry holds the voice memo record model, the in-session entry cache
// with its generation lock set, and the calendar bucketing used for display.
package entry

import "time"

// Entry is one persisted voice memo with its optional AI insight
type Entry struct {
	ID               string    `json:"id" yaml:"id"`
	OwnerID          string    `json:"user_id" yaml:"user_id"`
	AudioURL         string    `json:"audio_url" yaml:"audio_url"`
	InsightsText     *string   `json:"insights,omitempty" yaml:"insights,omitempty"`
	InsightsAudioURL *string   `json:"insights_audio_url,omitempty" yaml:"insights_audio_url,omitempty"`
	DurationSeconds  int       `json:"duration" yaml:"duration"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
}

// HasInsights reports whether a non-empty insight text has been committed
func (e Entry) HasInsights() bool {
	return e.InsightsText != nil && *e.InsightsText != ""
}

// Insights returns the insight text or an empty string
func (e Entry) Insights() string {
	if e.InsightsText == nil {
		return ""
	}
	return *e.InsightsText
}

// Clone returns a deep copy so callers never share pointer fields with the cache
func (e Entry) Clone() Entry {
	out := e
	if e.InsightsText != nil {
		v := *e.InsightsText
		out.InsightsText = &v
	}
	if e.InsightsAudioURL != nil {
		v := *e.InsightsAudioURL
		out.InsightsAudioURL = &v
	}
	return out
}

// Update is a partial set of entry fields. Nil fields are left unchanged.
type Update struct {
	AudioURL         *string
	InsightsText     *string
	InsightsAudioURL *string
}

// Apply returns a copy of e with the non-nil fields of u applied
func (u Update) Apply(e Entry) Entry {
	out := e.Clone()
	if u.AudioURL != nil {
		out.AudioURL = *u.AudioURL
	}
	if u.InsightsText != nil {
		v := *u.InsightsText
		out.InsightsText = &v
	}
	if u.InsightsAudioURL != nil {
		v := *u.InsightsAudioURL
		out.InsightsAudioURL = &v
	}
	return out
}

// IsEmpty reports whether the update changes nothing
func (u Update) IsEmpty() bool {
	return u.AudioURL == nil && u.InsightsText == nil && u.InsightsAudioURL == nil
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string { return &s }
