package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub().(*Hub)

	go hub.Run()

	clientA := NewClient("user_A", nil)
	hub.RegisterClient(clientA)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	hub.UnregisterClient(clientA)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_SendToUser(t *testing.T) {
	hub := NewHub().(*Hub)

	go hub.Run()

	clientA := NewClient("user_A", nil)
	hub.RegisterClient(clientA)
	time.Sleep(50 * time.Millisecond)

	hub.SendToUser("user_A", []byte("ward round at 9"))

	select {
	case payload := <-clientA.send:
		assert.Equal(t, []byte("ward round at 9"), payload)
	default:
		t.Error("user_A did not receive payload")
	}

	// Unknown user is a silent no-op.
	hub.SendToUser("user_B", []byte("nobody home"))
}

func TestHub_SendAfterUnregisterIsDropped(t *testing.T) {
	hub := NewHub().(*Hub)

	go hub.Run()

	clientA := NewClient("user_A", nil)
	hub.RegisterClient(clientA)
	time.Sleep(50 * time.Millisecond)

	hub.UnregisterClient(clientA)
	time.Sleep(50 * time.Millisecond)

	// A subscription callback racing the disconnect must drop its
	// event, not crash on the closed queue.
	assert.False(t, clientA.Send([]byte("late event")))
	hub.SendToUser("user_A", []byte("late event"))
}

func TestHub_UnregisterCallback(t *testing.T) {
	hub := NewHub().(*Hub)

	unregistered := make(chan string, 1)
	hub.SetOnClientUnregister(func(client *UserClient) error {
		unregistered <- client.UserId
		return nil
	})

	go hub.Run()

	clientA := NewClient("user_A", nil)
	hub.RegisterClient(clientA)
	time.Sleep(50 * time.Millisecond)
	hub.UnregisterClient(clientA)

	select {
	case userId := <-unregistered:
		assert.Equal(t, "user_A", userId)
	case <-time.After(time.Second):
		t.Error("unregister callback was not invoked")
	}
}
