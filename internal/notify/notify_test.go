package notify_test

import (
	"testing"
	"time"

	"planline/internal/notify"
)

func TestToastLifecycle(t *testing.T) {
	var q notify.Queue
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	toast := q.Push(notify.Success, "Plan committed", start)

	if got := q.Active(start); len(got) != 1 || got[0].Fading(start) {
		t.Fatalf("fresh toast: %+v", got)
	}

	midFade := start.Add(notify.Linger + notify.Fade/2)
	got := q.Active(midFade)
	if len(got) != 1 || !got[0].Fading(midFade) {
		t.Fatalf("expected fading toast at %v: %+v", midFade, got)
	}

	gone := start.Add(notify.Linger + notify.Fade)
	if got := q.Active(gone); len(got) != 0 {
		t.Fatalf("toast survived expiry: %+v", got)
	}
	_ = toast
}

func TestDismiss(t *testing.T) {
	var q notify.Queue
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := q.Push(notify.Error, "Create failed", now)
	q.Push(notify.Info, "Loading", now)
	q.Dismiss(first.ID)
	got := q.Active(now)
	if len(got) != 1 || got[0].Message != "Loading" {
		t.Fatalf("after dismiss: %+v", got)
	}
}

func TestNextExpiryEdges(t *testing.T) {
	var q notify.Queue
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, ok := q.NextExpiry(now); ok {
		t.Fatalf("empty queue wants a timer")
	}

	q.Push(notify.Info, "one", now)
	edge, ok := q.NextExpiry(now)
	if !ok || !edge.Equal(now.Add(notify.Linger)) {
		t.Fatalf("first edge: %v %v", edge, ok)
	}

	fading := now.Add(notify.Linger)
	edge, ok = q.NextExpiry(fading)
	if !ok || !edge.Equal(now.Add(notify.Linger+notify.Fade)) {
		t.Fatalf("fade edge: %v %v", edge, ok)
	}
}

func TestOverlappingToastsPickSoonestEdge(t *testing.T) {
	var q notify.Queue
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.Push(notify.Info, "old", base)
	q.Push(notify.Info, "new", base.Add(time.Second))

	edge, ok := q.NextExpiry(base.Add(2 * time.Second))
	if !ok || !edge.Equal(base.Add(notify.Linger)) {
		t.Fatalf("edge: %v", edge)
	}
}
