package events

import "testing"

func TestBusFansOutToSubscribers(t *testing.T) {
	bus := NewBus()
	first, cancelFirst := bus.Subscribe(4)
	second, cancelSecond := bus.Subscribe(4)
	defer cancelFirst()
	defer cancelSecond()

	bus.Publish(TopicGamesNew, map[string]string{"id": "race-1"})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case evt := <-ch:
			if evt.Topic != TopicGamesNew {
				t.Fatalf("expected games:new, got %s", evt.Topic)
			}
		default:
			t.Fatal("expected event delivered to subscriber")
		}
	}
}

func TestBusDropsWhenSubscriberSaturated(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(TopicGamesUpdate, "first")
	bus.Publish(TopicGamesUpdate, "second") // dropped, buffer full

	evt := <-ch
	if evt.Payload != "first" {
		t.Fatalf("expected first event retained, got %v", evt.Payload)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected saturated event dropped, got %v", extra.Payload)
	default:
	}
}

func TestBusCancelRemovesSubscriber(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	cancel()

	// Publishing after cancel must not panic on the closed channel.
	bus.Publish(TopicUsersUpdate, "ignored")

	if _, open := <-ch; open {
		t.Fatal("expected channel closed after cancel")
	}
}
