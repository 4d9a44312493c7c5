package chrono

import (
	"sync"
	"time"
)

// TimeAPI is the source of "now" for anything that compares against
// stored timestamps.
//
// note: fault injection point
type TimeAPI interface {
	Now() time.Time
	Location() *time.Location
}

type StandardTime struct {
	location *time.Location
}

// NewStandardTime loads an IANA zone name, an empty name means UTC.
func NewStandardTime(zone string) (StandardTime, error) {
	if zone == "" {
		return StandardTime{location: time.UTC}, nil
	}
	location, err := time.LoadLocation(zone)
	if err != nil {
		return StandardTime{}, err
	}
	return StandardTime{location: location}, nil
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardTime) Location() *time.Location {
	return s.location
}

// ManualTime only moves when told to.
type ManualTime struct {
	mutex sync.Mutex
	now   time.Time
}

func NewManualTime(now time.Time) *ManualTime {
	return &ManualTime{now: now}
}

func (m *ManualTime) Now() time.Time {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.now
}

func (m *ManualTime) Location() *time.Location {
	return m.Now().Location()
}

func (m *ManualTime) Set(now time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.now = now
}

func (m *ManualTime) Advance(d time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.now = m.now.Add(d)
}
