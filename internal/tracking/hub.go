package tracking

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/geo"
)

type UpdateKind string

const (
	UpdateLocation UpdateKind = "location"
	UpdateStatus   UpdateKind = "status"
	UpdateAlert    UpdateKind = "alert"
	UpdateStopped  UpdateKind = "stopped"
)

type Update struct {
	BookingID  uuid.UUID     `json:"booking_id"`
	UserID     uuid.UUID     `json:"user_id"`
	Kind       UpdateKind    `json:"kind"`
	Location   *geo.Point    `json:"location,omitempty"`
	Accuracy   *float64      `json:"accuracy,omitempty"`
	DistanceKm *float64      `json:"distance_km,omitempty"`
	Status     *DeviceStatus `json:"status,omitempty"`
	Alert      *Alert        `json:"alert,omitempty"`
	At         time.Time     `json:"at"`
}

// Hub fans tracking updates out to stream subscribers of a booking. A slow
// subscriber loses its oldest queued updates; publishers never block.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

type Subscription struct {
	hub       *Hub
	bookingID uuid.UUID
	viewerID  uuid.UUID
	ch        chan Update
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// Subscribe receives every update of the booking that viewerID did not
// publish itself.
func (h *Hub) Subscribe(bookingID, viewerID uuid.UUID) *Subscription {
	sub := &Subscription{
		hub:       h,
		bookingID: bookingID,
		viewerID:  viewerID,
		ch:        make(chan Update, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[bookingID] == nil {
		h.subs[bookingID] = make(map[*Subscription]struct{})
	}
	h.subs[bookingID][sub] = struct{}{}
	return sub
}

func (h *Hub) Publish(u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[u.BookingID] {
		if sub.viewerID == u.UserID {
			continue
		}
		sub.offer(u)
	}
}

func (h *Hub) Subscribers(bookingID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[bookingID])
}

func (s *Subscription) offer(u Update) {
	for {
		select {
		case s.ch <- u:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Subscription) Updates() <-chan Update {
	return s.ch
}

func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		h := s.hub
		h.mu.Lock()
		if set := h.subs[s.bookingID]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.bookingID)
			}
		}
		h.mu.Unlock()
		close(s.ch)
	})
}
