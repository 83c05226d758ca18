package tracking

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ArrivalRadiusKm   = 0.1
	DistanceStepKm    = 1.0
	LowBatteryPercent = 20
)

type AlertKind string

const (
	AlertArrived    AlertKind = "arrived"
	AlertDistance   AlertKind = "distance_update"
	AlertOffline    AlertKind = "offline"
	AlertLowBattery AlertKind = "low_battery"
)

type Alert struct {
	Kind       AlertKind `json:"kind"`
	DistanceKm float64   `json:"distance_km,omitempty"`
	Battery    int       `json:"battery,omitempty"`
}

type DeviceStatus struct {
	Online   bool `json:"online"`
	Battery  *int `json:"battery,omitempty" validate:"omitempty,min=0,max=100"`
	Charging bool `json:"charging"`
}

// Session remembers which one-shot alerts a party has already triggered
// during one tracking run. It is reset whenever tracking is (re)started.
type Session struct {
	mu sync.Mutex

	seen           time.Time
	lastNotifiedKm float64
	notified       bool
	arrived        bool
	offline        bool
	lowBattery     bool
}

// ObserveDistance returns the alerts owed to the counterpart for a new
// distance reading. The first reading always produces a distance update.
func (s *Session) ObserveDistance(km float64) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	if km < ArrivalRadiusKm {
		if s.arrived {
			return nil
		}
		s.arrived = true
		s.lastNotifiedKm = km
		s.notified = true
		return []Alert{{Kind: AlertArrived, DistanceKm: km}}
	}

	if s.notified && math.Abs(s.lastNotifiedKm-km) < DistanceStepKm {
		return nil
	}
	s.lastNotifiedKm = km
	s.notified = true
	return []Alert{{Kind: AlertDistance, DistanceKm: km}}
}

// ObserveStatus reports going offline once until the device is back online,
// and a low battery once per session.
func (s *Session) ObserveStatus(st DeviceStatus) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var alerts []Alert
	if !st.Online {
		if !s.offline {
			s.offline = true
			alerts = append(alerts, Alert{Kind: AlertOffline})
		}
	} else {
		s.offline = false
	}

	if st.Battery != nil && *st.Battery < LowBatteryPercent && !st.Charging && !s.lowBattery {
		s.lowBattery = true
		alerts = append(alerts, Alert{Kind: AlertLowBattery, Battery: *st.Battery})
	}
	return alerts
}

type sessionKey struct {
	booking uuid.UUID
	user    uuid.UUID
}

// Registry holds one Session per (booking, reporting user). It lives in
// process memory, so every replica keeps its own alert state.
type Registry struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[sessionKey]*Session), now: time.Now}
}

func (r *Registry) Session(bookingID, userID uuid.UUID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := sessionKey{bookingID, userID}
	s, ok := r.sessions[k]
	if !ok {
		s = &Session{}
		r.sessions[k] = s
	}
	s.seen = r.now()
	return s
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions nobody reported into for idle and returns how many
// went.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	dropped := 0
	for k, s := range r.sessions {
		if s.seen.Before(cutoff) {
			delete(r.sessions, k)
			dropped++
		}
	}
	return dropped
}

// Reset forgets every session of the booking.
func (r *Registry) Reset(bookingID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.sessions {
		if k.booking == bookingID {
			delete(r.sessions, k)
		}
	}
}
