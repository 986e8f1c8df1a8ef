package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/natstest"
)

func receive(t *testing.T, ch chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "pm.items.PROJ.created", ItemSubject("PROJ"))
	assert.Equal(t, "pm.runs.PROJ.completed", RunSubject("PROJ", true))
	assert.Equal(t, "pm.runs.PROJ.failed", RunSubject("PROJ", false))
	// Dots and wildcards would split or widen the subject.
	assert.Equal(t, "pm.items.a_b.created", ItemSubject("a.b*"))
}

func TestPublisher_ItemCreated(t *testing.T) {
	nc := natstest.Connect(t)
	p, err := NewPublisher(nc)
	require.NoError(t, err)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("pm.items.*.created", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, p.ItemCreated(ItemCreated{
		RunID:   "run-1",
		Project: "PROJ",
		Type:    item.TypeStory,
		Key:     "PROJ-2",
		Summary: "Login",
		Source:  "prompt",
	}))
	require.NoError(t, nc.Flush())

	msg := receive(t, ch)
	assert.Equal(t, "pm.items.PROJ.created", msg.Subject)
	var ev ItemCreated
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "PROJ-2", ev.Key)
	assert.Equal(t, item.TypeStory, ev.Type)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestPublisher_RunFinished(t *testing.T) {
	nc := natstest.Connect(t)
	p, err := NewPublisher(nc)
	require.NoError(t, err)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("pm.runs.PROJ.failed", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, p.RunFinished(RunFinished{
		RunID:   "run-2",
		Project: "PROJ",
		Type:    item.TypeAuto,
		Keys:    []string{"PROJ-1"},
		Error:   "hierarchy incomplete",
	}))
	require.NoError(t, nc.Flush())

	var ev RunFinished
	require.NoError(t, json.Unmarshal(receive(t, ch).Data, &ev))
	assert.False(t, ev.Success)
	assert.Equal(t, []string{"PROJ-1"}, ev.Keys)
	assert.Equal(t, "hierarchy incomplete", ev.Error)
}

func TestPublisher_Nil(t *testing.T) {
	var p *Publisher
	assert.NoError(t, p.ItemCreated(ItemCreated{Project: "PROJ"}))
	assert.NoError(t, p.RunFinished(RunFinished{Project: "PROJ"}))

	_, err := NewPublisher(nil)
	assert.Error(t, err)
}

func TestPublisher_ClosedConnection(t *testing.T) {
	nc := natstest.Connect(t)
	p, err := NewPublisher(nc)
	require.NoError(t, err)
	nc.Close()

	err = p.ItemCreated(ItemCreated{Project: "PROJ", Key: "PROJ-1"})
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}
