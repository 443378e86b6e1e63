package provider

import (
	"fmt"
	"testing"
)

func TestHistoryCacheWindow(t *testing.T) {
	cache := NewHistoryCache()

	for i := 0; i < 15; i++ {
		cache.Record("aa:bb:cc:dd:ee:ff", fmt.Sprintf("question %d", i), "42")
	}

	recent := cache.Recent("aa:bb:cc:dd:ee:ff")
	if len(recent) != maxExchangesPerDevice {
		t.Fatalf("expected window of %d exchanges, got %d", maxExchangesPerDevice, len(recent))
	}
	if recent[0].Prompt != "question 5" {
		t.Errorf("oldest exchanges should be evicted first, window starts at %q", recent[0].Prompt)
	}
	if recent[len(recent)-1].Prompt != "question 14" {
		t.Errorf("newest exchange missing, window ends at %q", recent[len(recent)-1].Prompt)
	}
}

func TestHistoryCacheUnknownDevice(t *testing.T) {
	cache := NewHistoryCache()
	if got := cache.Recent("never:seen"); got != nil {
		t.Errorf("expected nil for unknown device, got %v", got)
	}
}

func TestHistoryCacheDeviceCap(t *testing.T) {
	cache := NewHistoryCache()

	for i := 0; i < maxTrackedDevices+10; i++ {
		cache.Record(fmt.Sprintf("device-%d", i), "q", "a")
	}

	if len(cache.devices) != maxTrackedDevices {
		t.Fatalf("expected %d tracked devices, got %d", maxTrackedDevices, len(cache.devices))
	}
	// The most recent devices survive eviction.
	if got := cache.Recent(fmt.Sprintf("device-%d", maxTrackedDevices+9)); len(got) != 1 {
		t.Error("latest device should still be tracked")
	}
}

func TestHistoryCacheCopies(t *testing.T) {
	cache := NewHistoryCache()
	cache.Record("dev", "original", "a")

	recent := cache.Recent("dev")
	recent[0].Prompt = "mutated"

	if got := cache.Recent("dev"); got[0].Prompt != "original" {
		t.Error("Recent must return a copy, not the internal slice")
	}
}
