package realtime

import (
	"testing"

	ws "ridebid/pkg/websocket"
)

func TestAttachIsAppendOnly(t *testing.T) {
	r := NewRouter()

	var order []string
	r.Attach(ws.EventNewBid, Handler{Name: "first", Fn: func(ws.Event) { order = append(order, "first") }})
	r.Attach(ws.EventNewBid, Handler{Name: "second", Fn: func(ws.Event) { order = append(order, "second") }})

	r.Dispatch(ws.MustEvent(ws.EventNewBid, "", ws.BidPayload{Amount: 10}))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestAttachSameNameIsNoOp(t *testing.T) {
	r := NewRouter()

	calls := 0
	if ok := r.Attach(ws.EventNewBid, Handler{Name: "h", Fn: func(ws.Event) { calls++ }}); !ok {
		t.Fatal("first Attach returned false")
	}
	if ok := r.Attach(ws.EventNewBid, Handler{Name: "h", Fn: func(ws.Event) { calls++ }}); ok {
		t.Fatal("re-attaching the same name returned true")
	}

	r.Dispatch(ws.MustEvent(ws.EventNewBid, "", nil))
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}

	// Same name on another kind is independent.
	if ok := r.Attach(ws.EventRideStatusUpdate, Handler{Name: "h", Fn: func(ws.Event) {}}); !ok {
		t.Error("same name on a different kind should attach")
	}
}

func TestCatchAllSeesEveryKind(t *testing.T) {
	r := NewRouter()

	var seen []ws.EventKind
	r.AttachCatchAll(Handler{Name: "audit", Fn: func(event ws.Event) { seen = append(seen, event.Kind) }})

	r.Dispatch(ws.MustEvent(ws.EventNewBid, "", nil))
	r.Dispatch(ws.MustEvent(ws.EventRideCancelled, "", nil))
	r.Dispatch(ws.MustEvent(ws.EventPong, "", nil))

	if len(seen) != 3 {
		t.Fatalf("catch-all saw %d events, want 3", len(seen))
	}
	if seen[0] != ws.EventNewBid || seen[1] != ws.EventRideCancelled || seen[2] != ws.EventPong {
		t.Errorf("seen = %v", seen)
	}
}

func TestKindHandlersRunBeforeCatchAll(t *testing.T) {
	r := NewRouter()

	var order []string
	r.AttachCatchAll(Handler{Name: "all", Fn: func(ws.Event) { order = append(order, "all") }})
	r.Attach(ws.EventNewBid, Handler{Name: "kind", Fn: func(ws.Event) { order = append(order, "kind") }})

	r.Dispatch(ws.MustEvent(ws.EventNewBid, "", nil))

	if len(order) != 2 || order[0] != "kind" || order[1] != "all" {
		t.Errorf("order = %v, want [kind all]", order)
	}
}

func TestDetach(t *testing.T) {
	r := NewRouter()

	calls := 0
	r.Attach(ws.EventNewBid, Handler{Name: "h", Fn: func(ws.Event) { calls++ }})
	r.Detach(ws.EventNewBid, "h")

	r.Dispatch(ws.MustEvent(ws.EventNewBid, "", nil))
	if calls != 0 {
		t.Errorf("detached handler ran %d times", calls)
	}

	// The name is free again after detach.
	if ok := r.Attach(ws.EventNewBid, Handler{Name: "h", Fn: func(ws.Event) {}}); !ok {
		t.Error("re-attach after Detach returned false")
	}
}

func TestTypedHelpersDecodePayloads(t *testing.T) {
	r := NewRouter()

	var bid ws.BidPayload
	r.OnBid("bids", func(p ws.BidPayload) { bid = p })

	var status ws.RideStatusPayload
	r.OnRideStatus("status", func(p ws.RideStatusPayload) { status = p })

	var loc ws.LocationPayload
	r.OnLocation("loc", func(p ws.LocationPayload) { loc = p })

	var msg ws.MessagePayload
	r.OnChat("chat", func(p ws.MessagePayload) { msg = p })

	r.Dispatch(ws.MustEvent(ws.EventNewBid, "", ws.BidPayload{BidID: "b1", Amount: 250}))
	r.Dispatch(ws.MustEvent(ws.EventRideStatusUpdate, "", ws.RideStatusPayload{RideID: "r1", Status: "matched"}))
	r.Dispatch(ws.MustEvent(ws.EventRiderLocationUpdate, "", ws.LocationPayload{Latitude: 40.7, Longitude: -74.0}))
	r.Dispatch(ws.MustEvent(ws.EventReceiveMessage, "", ws.MessagePayload{Message: "on my way"}))

	if bid.BidID != "b1" || bid.Amount != 250 {
		t.Errorf("bid payload = %+v", bid)
	}
	if status.Status != "matched" {
		t.Errorf("status payload = %+v", status)
	}
	if loc.Latitude != 40.7 || loc.Longitude != -74.0 {
		t.Errorf("location payload = %+v", loc)
	}
	if msg.Message != "on my way" {
		t.Errorf("message payload = %+v", msg)
	}
}

func TestTypedHelperSkipsMalformedPayload(t *testing.T) {
	r := NewRouter()

	called := false
	r.OnBid("bids", func(ws.BidPayload) { called = true })

	event := ws.Event{Kind: ws.EventNewBid, Payload: []byte(`"not an object"`)}
	r.Dispatch(event)

	if called {
		t.Error("handler ran for a payload that does not decode")
	}
}
