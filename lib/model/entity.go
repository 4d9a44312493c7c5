package model

import "time"

// ErrorLogEntry is one adapter failure recorded against an entity.
type ErrorLogEntry struct {
	Source  SourceKind `json:"source"`
	Kind    ErrorKind  `json:"kind"`
	Message string     `json:"message"`
	Time    time.Time  `json:"time"`
}

// Entity is one tracked individual.
type Entity struct {
	// ID is the stable roll number or handle the roster knows the entity by.
	ID   string
	Name string

	// Handles holds the explicit per-source handle, an empty or missing
	// handle falls back to resolving ProfileURLs.
	Handles     map[SourceKind]string
	ProfileURLs map[SourceKind]string
	Profiles    map[SourceKind]Profile

	// LastRefreshedAt is zero when the entity has never been refreshed.
	LastRefreshedAt time.Time
	// Errors is ordered oldest first.
	Errors []ErrorLogEntry
}

func (e Entity) Handle(source SourceKind) string {
	if e.Handles == nil {
		return ""
	}
	return e.Handles[source]
}

func (e Entity) ProfileURL(source SourceKind) string {
	if e.ProfileURLs == nil {
		return ""
	}
	return e.ProfileURLs[source]
}

// Stale reports whether the entity is due for a refresh at now given the
// staleness threshold.
func (e Entity) Stale(now time.Time, threshold time.Duration) bool {
	if e.LastRefreshedAt.IsZero() {
		return true
	}
	return now.Sub(e.LastRefreshedAt) > threshold
}
