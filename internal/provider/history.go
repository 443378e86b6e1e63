package provider

import (
	"sync"
	"time"
)

const (
	maxExchangesPerDevice = 10
	maxTrackedDevices     = 256
)

// Exchange is one question/answer pair kept for prompt context.
type Exchange struct {
	Prompt string
	Answer string
	At     time.Time
}

type deviceHistory struct {
	exchanges []Exchange
	touched   time.Time
}

// HistoryCache keeps a bounded per-device window of recent exchanges so
// the conversational backend can avoid repeating questions. It is an
// in-memory cache only: losing it degrades variety, never correctness.
type HistoryCache struct {
	mu      sync.Mutex
	devices map[string]*deviceHistory
}

func NewHistoryCache() *HistoryCache {
	return &HistoryCache{devices: make(map[string]*deviceHistory)}
}

// Record appends an exchange for a device, evicting the oldest exchange
// past the per-device window and the least recently touched device past
// the device cap.
func (h *HistoryCache) Record(deviceID, prompt, answer string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dh, ok := h.devices[deviceID]
	if !ok {
		if len(h.devices) >= maxTrackedDevices {
			h.evictOldestLocked()
		}
		dh = &deviceHistory{}
		h.devices[deviceID] = dh
	}

	dh.exchanges = append(dh.exchanges, Exchange{Prompt: prompt, Answer: answer, At: time.Now()})
	if len(dh.exchanges) > maxExchangesPerDevice {
		dh.exchanges = dh.exchanges[len(dh.exchanges)-maxExchangesPerDevice:]
	}
	dh.touched = time.Now()
}

// Recent returns a copy of the device's exchange window, oldest first.
func (h *HistoryCache) Recent(deviceID string) []Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()

	dh, ok := h.devices[deviceID]
	if !ok {
		return nil
	}
	dh.touched = time.Now()
	out := make([]Exchange, len(dh.exchanges))
	copy(out, dh.exchanges)
	return out
}

func (h *HistoryCache) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, dh := range h.devices {
		if oldestID == "" || dh.touched.Before(oldest) {
			oldestID = id
			oldest = dh.touched
		}
	}
	if oldestID != "" {
		delete(h.devices, oldestID)
	}
}
