package services_test

import (
	"errors"
	"strings"
	"testing"

	"meetingmedia/internal/services"
)

func TestWrapIncludesResource(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExtraction, "mwb_E_202401", "open contents", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"mwb_E_202401", "open contents", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
	if got := services.ResourceOf(err); got != "mwb_E_202401" {
		t.Fatalf("unexpected resource: %q", got)
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		marker error
		want   string
		item   bool
	}{
		{services.ErrExtraction, "extraction", true},
		{services.ErrUnavailable, "unavailable", true},
		{services.ErrNetwork, "network", true},
		{services.ErrIntegrity, "integrity", true},
		{services.ErrNoSchedule, "no_schedule", false},
		{services.ErrNoDatabase, "no_database", false},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "x", "", nil)
		if got := services.Kind(err); got != tc.want {
			t.Fatalf("kind for %v: got %q want %q", tc.marker, got, tc.want)
		}
		if got := services.IsItemLevel(err); got != tc.item {
			t.Fatalf("item level for %v: got %v want %v", tc.marker, got, tc.item)
		}
	}
	if got := services.Kind(errors.New("plain")); got != "unknown" {
		t.Fatalf("expected unknown kind, got %q", got)
	}
}

func TestNetworkDistinctFromUnavailable(t *testing.T) {
	err := services.Wrap(services.ErrNetwork, "https://example.test/a.mp4", "download", errors.New("dial tcp"))
	if errors.Is(err, services.ErrUnavailable) {
		t.Fatal("network failure must not read as unavailable content")
	}
}
