package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	assert.Equal(t, 2, b.Count())

	b.Unsubscribe(ch1)
	assert.Equal(t, 1, b.Count())

	b.Unsubscribe(ch2)
	assert.Equal(t, 0, b.Count())

	// second unsubscribe must not panic on the closed channel
	b.Unsubscribe(ch2)
	_, open := <-ch2
	assert.False(t, open)
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventUpload, Name: "report.pdf", Size: 100})

	select {
	case received := <-ch:
		assert.Equal(t, EventUpload, received.Type)
		assert.Equal(t, "report.pdf", received.Name)
		assert.NotZero(t, received.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(Event{Type: EventRelocate, Dir: "/srv/share"})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			assert.Equal(t, "/srv/share", received.Dir, "subscriber %d", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < subscriberBuffer+36; i++ {
		b.Publish(Event{Type: EventDelete, Name: "overflow.txt"})
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, count)
}

func TestMarshalEventCarriesTunnelStatus(t *testing.T) {
	data, err := MarshalEvent(Event{
		Type:      EventTunnel,
		Tunnel:    &tunnelModel.Status{State: tunnelModel.StateConnected, URL: "https://a.example"},
		Timestamp: 1234567890,
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "tunnel", decoded["type"])
	tunnel := decoded["tunnel"].(map[string]interface{})
	assert.Equal(t, "connected", tunnel["state"])
	assert.NotContains(t, decoded, "name")
}
