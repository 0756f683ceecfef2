package bus

import "testing"

func TestPublishSubscribe(t *testing.T) {
	b := New()

	var got []Event
	b.Subscribe("chat.global", func(e Event) {
		got = append(got, e)
	})

	n := b.Publish("chat.global", "e1", "hello")
	if n != 1 {
		t.Fatalf("expected 1 handler reached, got %d", n)
	}
	if len(got) != 1 || got[0].Data != "hello" || got[0].Source != "e1" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestTopicIsolation(t *testing.T) {
	b := New()

	count1, count2 := 0, 0
	b.Subscribe("t1", func(Event) { count1++ })
	b.Subscribe("t2", func(Event) { count2++ })

	b.Publish("t1", "src", nil)
	if count1 != 1 || count2 != 0 {
		t.Fatalf("topic isolation failed: %d %d", count1, count2)
	}
}

func TestCancel(t *testing.T) {
	b := New()

	count := 0
	sub := b.Subscribe("t", func(Event) { count++ })
	b.Publish("t", "src", nil)
	sub.Cancel()
	b.Publish("t", "src", nil)

	if count != 1 {
		t.Fatalf("expected handler called once, got %d", count)
	}
	if len(b.Topics()) != 0 {
		t.Fatalf("expected no live topics, got %v", b.Topics())
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	b := New()
	if n := b.Publish("empty", "src", 1); n != 0 {
		t.Fatalf("expected 0 handlers, got %d", n)
	}
	if b.Published() != 1 {
		t.Fatalf("expected publish counter 1, got %d", b.Published())
	}
}
