package events

import (
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

type recordingBroadcaster struct {
	messages [][]byte
}

func (r *recordingBroadcaster) Broadcast(message []byte) {
	r.messages = append(r.messages, message)
}

func TestEmitBroadcastsEnvelope(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	dispatcher := NewDispatcher(broadcaster, nil, logrus.New())

	dispatcher.Emit(TopicPost, "created", map[string]string{"id": "p1"})
	if len(broadcaster.messages) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(broadcaster.messages))
	}

	var update Update
	if err := json.Unmarshal(broadcaster.messages[0], &update); err != nil {
		t.Fatalf("broadcast payload is not valid json: %v", err)
	}
	if update.Op != "created" {
		t.Errorf("expected op in the envelope, got %q", update.Op)
	}
	if update.Timestamp.IsZero() {
		t.Error("expected a timestamp in the envelope")
	}
}

func TestReplayRecentSendsLastPayloadPerTopic(t *testing.T) {
	dispatcher := NewDispatcher(&recordingBroadcaster{}, nil, logrus.New())
	dispatcher.Emit(TopicPost, "created", map[string]string{"id": "p1"})
	dispatcher.Emit(TopicPost, "published", map[string]string{"id": "p1"})
	dispatcher.Emit(TopicAirdrop, "created", map[string]string{"id": "a1"})

	client := &Client{send: make(chan []byte, 8)}
	dispatcher.ReplayRecent(client)
	close(client.send)

	ops := map[string]bool{}
	for payload := range client.send {
		var update Update
		if err := json.Unmarshal(payload, &update); err != nil {
			t.Fatalf("replayed payload is not valid json: %v", err)
		}
		ops[update.Op] = true
	}
	if len(ops) != 2 {
		t.Fatalf("expected one replay per topic, got ops %v", ops)
	}
	if !ops["published"] {
		t.Error("expected the newest post payload to win the replay slot")
	}
	if ops["created"] != true {
		t.Error("expected the airdrop payload replayed")
	}
}

func TestEmitSurvivesNilBroadcaster(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil, logrus.New())
	dispatcher.Emit(TopicState, "update", "payload")
}
