package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"ridebid/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.Discard())
	go hub.Run()
	return hub
}

func registerClient(t *testing.T, hub *Hub, userType string) *Client {
	t.Helper()
	client := NewClient(hub, nil, primitive.NewObjectID(), userType)
	hub.register <- client

	// Registration is acknowledged with a welcome event.
	event := receiveEvent(t, client)
	if event.Kind != EventWelcome {
		t.Fatalf("first event = %s, want welcome", event.Kind)
	}
	return client
}

func receiveEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case data, ok := <-client.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func expectNoEvent(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Fatalf("unexpected event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegisterJoinsPersonalRoom(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "customer")

	if !client.InRoom("user_" + client.UserID.Hex()) {
		t.Error("client not in its personal room after registration")
	}
}

func TestEmitToRideReachesOnlyRoomMembers(t *testing.T) {
	hub := runHub(t)
	member := registerClient(t, hub, "customer")
	outsider := registerClient(t, hub, "rider")

	rideID := primitive.NewObjectID()
	hub.JoinRoom(member, RideRoom(rideID))

	hub.EmitToRide(rideID, MustEvent(EventRideStatusUpdate, "", RideStatusPayload{
		RideID: rideID.Hex(),
		Status: "matched",
	}))

	event := receiveEvent(t, member)
	if event.Kind != EventRideStatusUpdate {
		t.Errorf("kind = %s, want ride_status_update", event.Kind)
	}
	if event.RoomID != RideRoom(rideID) {
		t.Errorf("room = %q, want %q", event.RoomID, RideRoom(rideID))
	}

	expectNoEvent(t, outsider)
}

func TestEmitToUserTargetsPersonalRoom(t *testing.T) {
	hub := runHub(t)
	target := registerClient(t, hub, "rider")
	other := registerClient(t, hub, "rider")

	hub.EmitToUser(target.UserID, MustEvent(EventRideAccepted, "", RideAcceptedPayload{
		RiderID: target.UserID.Hex(),
	}))

	event := receiveEvent(t, target)
	if event.Kind != EventRideAccepted {
		t.Errorf("kind = %s, want ride_accepted", event.Kind)
	}

	expectNoEvent(t, other)
}

func TestRoomEventsArriveInEmissionOrder(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "customer")

	rideID := primitive.NewObjectID()
	hub.JoinRoom(client, RideRoom(rideID))

	amounts := []float64{100, 95, 90, 85}
	for _, amount := range amounts {
		hub.EmitToRide(rideID, MustEvent(EventNewBid, "", BidPayload{Amount: amount}))
	}

	for i, want := range amounts {
		event := receiveEvent(t, client)
		var payload BidPayload
		if err := event.DecodePayload(&payload); err != nil {
			t.Fatalf("decode bid %d: %v", i, err)
		}
		if payload.Amount != want {
			t.Errorf("bid %d amount = %v, want %v", i, payload.Amount, want)
		}
	}
}

func TestEmitToEmptyRoomIsDropped(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "customer")

	hub.EmitToRide(primitive.NewObjectID(), MustEvent(EventNewBid, "", BidPayload{Amount: 10}))

	expectNoEvent(t, client)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "customer")

	rideID := primitive.NewObjectID()
	hub.JoinRoom(client, RideRoom(rideID))
	hub.LeaveRoom(client, RideRoom(rideID))

	if client.InRoom(RideRoom(rideID)) {
		t.Error("still in room after leave")
	}

	hub.EmitToRide(rideID, MustEvent(EventNewBid, "", BidPayload{Amount: 10}))
	expectNoEvent(t, client)
}

func TestUnregisterClosesSendAndLeavesRooms(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "customer")

	rideID := primitive.NewObjectID()
	hub.JoinRoom(client, RideRoom(rideID))

	hub.unregister <- client

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed")
	}

	hub.mutex.RLock()
	_, roomExists := hub.rooms[RideRoom(rideID)]
	hub.mutex.RUnlock()
	if roomExists {
		t.Error("empty room not pruned after unregister")
	}
}

// A client dropped for consuming too slowly can still have replies in
// flight from its read side; those must be silently discarded, not
// crash the hub on the closed channel.
func TestReplyAfterSlowConsumerDropDoesNotPanic(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "customer")

	// Fill the buffer without draining it.
	for i := 0; i < cap(client.send); i++ {
		if !client.enqueue([]byte("{}")) {
			break
		}
	}

	// The next personal delivery trips the slow-consumer drop.
	hub.EmitToUser(client.UserID, MustEvent(EventNewBid, "", BidPayload{Amount: 1}))

	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mutex.RLock()
		_, present := hub.clients[client]
		hub.mutex.RUnlock()
		if !present {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("slow client was not dropped")
		}
		time.Sleep(2 * time.Millisecond)
	}

	// Replies the read side produces after the drop are no-ops.
	ping, _ := json.Marshal(MustEvent(EventPing, "", nil))
	client.handleEvent(ping)

	join, _ := json.Marshal(MustEvent(EventJoinRoom, "", RoomPayload{RoomID: RideRoom(primitive.NewObjectID())}))
	client.handleEvent(join)
}

func TestEnqueueAfterCloseIsRejected(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "rider")

	hub.unregister <- client
	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed")
	}

	if client.enqueue([]byte("{}")) {
		t.Error("enqueue after close reported success")
	}
	// Double close through a second unregister must also be safe.
	client.closeSend()
}

func TestHandleEventJoinAndLeaveRoom(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "customer")

	rideID := primitive.NewObjectID()
	roomID := RideRoom(rideID)

	join, _ := json.Marshal(MustEvent(EventJoinRoom, "", RoomPayload{RoomID: roomID}))
	client.handleEvent(join)

	ack := receiveEvent(t, client)
	if ack.Kind != EventRoomJoined || ack.RoomID != roomID {
		t.Errorf("ack = %+v, want room_joined for %s", ack, roomID)
	}
	if !client.InRoom(roomID) {
		t.Error("not in room after join event")
	}

	leave, _ := json.Marshal(MustEvent(EventLeaveRoom, "", RoomPayload{RoomID: roomID}))
	client.handleEvent(leave)

	ack = receiveEvent(t, client)
	if ack.Kind != EventRoomLeft {
		t.Errorf("ack kind = %s, want room_left", ack.Kind)
	}
	if client.InRoom(roomID) {
		t.Error("still in room after leave event")
	}
}

func TestHandleEventStampsSessionIdentity(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "customer")
	inbound := &capturingInbound{events: make(chan Event, 1)}
	hub.SetInboundHandler(inbound)

	// A client claiming another user's identity in the envelope.
	spoofed := MustEvent(EventSendMessage, "", MessagePayload{Message: "hi"})
	spoofed.UserID = primitive.NewObjectID().Hex()
	data, _ := json.Marshal(spoofed)
	client.handleEvent(data)

	select {
	case event := <-inbound.events:
		if event.UserID != client.UserID.Hex() {
			t.Errorf("inbound user = %s, want session user %s", event.UserID, client.UserID.Hex())
		}
	case <-time.After(time.Second):
		t.Fatal("inbound handler not invoked")
	}
}

type capturingInbound struct {
	events chan Event
}

func (h *capturingInbound) HandleInbound(_ *Client, event Event) {
	h.events <- event
}

func TestHandleEventDropsUnknownAndMalformed(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "customer")

	client.handleEvent([]byte(`{"kind":"made_up"}`))
	client.handleEvent([]byte(`not json`))

	// Server-originated kinds from a client are ignored too.
	fromClient, _ := json.Marshal(MustEvent(EventRideAccepted, "", RideAcceptedPayload{}))
	client.handleEvent(fromClient)

	expectNoEvent(t, client)
}

func TestHandleEventPingPong(t *testing.T) {
	hub := runHub(t)
	client := registerClient(t, hub, "rider")

	ping, _ := json.Marshal(MustEvent(EventPing, "", nil))
	client.handleEvent(ping)

	event := receiveEvent(t, client)
	if event.Kind != EventPong {
		t.Errorf("kind = %s, want pong", event.Kind)
	}
}
