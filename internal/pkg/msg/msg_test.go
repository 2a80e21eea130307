package msg

import (
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func TestPublishReachesSubscribers(t *testing.T) {
	sender, _ := uuid.NewRandom()
	sub1, _ := uuid.NewRandom()
	sub2, _ := uuid.NewRandom()
	p := NewPublisher(sender)

	ch1, err := p.Subscribe(sub1, Stage)
	assert.NilError(t, err)
	ch2, err := p.Subscribe(sub2, Stage)
	assert.NilError(t, err)

	p.Publish(Stage, "payload")

	for _, ch := range []<-chan Msg{ch1, ch2} {
		m := <-ch
		assert.Equal(t, m.PID(), sender)
		assert.Equal(t, m.Topic(), Stage)
		assert.Equal(t, m.Payload(), "payload")
	}
}

func TestTopicsArePartitioned(t *testing.T) {
	sender, _ := uuid.NewRandom()
	sub, _ := uuid.NewRandom()
	p := NewPublisher(sender)

	ch, err := p.Subscribe(sub, Balance)
	assert.NilError(t, err)

	p.Publish(Stage, "stage event")
	select {
	case m := <-ch:
		t.Fatalf("unexpected message on balance topic: %v", m.Payload())
	default:
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	sender, _ := uuid.NewRandom()
	sub, _ := uuid.NewRandom()
	p := NewPublisher(sender)

	if _, err := p.Subscribe(sub, Stage); err != nil {
		t.Fatal(err)
	}
	// Overflow the subscriber buffer; extra messages are dropped.
	for i := 0; i < 200; i++ {
		p.Publish(Stage, i)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	sender, _ := uuid.NewRandom()
	sub, _ := uuid.NewRandom()
	p := NewPublisher(sender)

	ch, err := p.Subscribe(sub, Result)
	assert.NilError(t, err)

	p.Unsubscribe(sub)
	_, open := <-ch
	assert.Assert(t, !open)
}

func TestSubscribeAfterClose(t *testing.T) {
	sender, _ := uuid.NewRandom()
	sub, _ := uuid.NewRandom()
	p := NewPublisher(sender)
	p.Close()

	_, err := p.Subscribe(sub, Stage)
	assert.Assert(t, err != nil)
}
