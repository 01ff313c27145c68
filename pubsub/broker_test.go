package pubsub

import (
	"testing"
	"time"
)

func TestPublishToExactChannel(t *testing.T) {
	b := NewBroker(16, DisconnectSlowSubscriber)
	sub := b.NewSubscriberForBroker("sub1", nil)
	b.Subscribe("news", sub)

	n := b.Publish("news", []byte("hello"))
	if n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}

	select {
	case msg := <-sub.Queue():
		if msg.Channel != "news" || string(msg.Payload) != "hello" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a message")
	}
}

func TestPublishToPatternSubscriber(t *testing.T) {
	b := NewBroker(16, DisconnectSlowSubscriber)
	sub := b.NewSubscriberForBroker("sub1", nil)
	if err := b.PSubscribe("news.*", sub); err != nil {
		t.Fatalf("PSubscribe: %v", err)
	}

	b.Publish("news.sports", []byte("goal"))
	select {
	case msg := <-sub.Queue():
		if msg.Pattern != "news.*" || msg.Channel != "news.sports" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a message")
	}

	if n := b.Publish("other.sports", []byte("x")); n != 0 {
		t.Errorf("expected 0 deliveries for a non-matching channel, got %d", n)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker(16, DisconnectSlowSubscriber)
	sub := b.NewSubscriberForBroker("sub1", nil)
	b.Subscribe("news", sub)
	b.Unsubscribe("news", "sub1")

	if n := b.Publish("news", []byte("x")); n != 0 {
		t.Errorf("expected 0 deliveries after unsubscribe, got %d", n)
	}
}

func TestOverflowDropOldest(t *testing.T) {
	b := NewBroker(2, DropOldest)
	sub := b.NewSubscriberForBroker("sub1", nil)
	b.Subscribe("c", sub)

	b.Publish("c", []byte("1"))
	b.Publish("c", []byte("2"))
	b.Publish("c", []byte("3")) // queue full, drops "1"

	first := <-sub.Queue()
	second := <-sub.Queue()
	if string(first.Payload) != "2" || string(second.Payload) != "3" {
		t.Errorf("expected [2,3], got [%s,%s]", first.Payload, second.Payload)
	}
}

func TestOverflowDisconnectSlowSubscriber(t *testing.T) {
	killed := make(chan string, 1)
	b := NewBroker(1, DisconnectSlowSubscriber)
	sub := b.NewSubscriberForBroker("sub1", func(reason string) { killed <- reason })
	b.Subscribe("c", sub)

	b.Publish("c", []byte("1"))
	b.Publish("c", []byte("2")) // overflow, kills the subscriber

	select {
	case reason := <-killed:
		if reason != "slow_consumer" {
			t.Errorf("expected slow_consumer, got %s", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("expected subscriber to be killed")
	}
	if !sub.Killed() {
		t.Error("expected subscriber to report killed")
	}
}

func TestCompileGlobMatching(t *testing.T) {
	cases := []struct {
		pattern, channel string
		want             bool
	}{
		{"news.*", "news.sports", true},
		{"news.*", "weather", false},
		{"n?ws", "news", true},
		{"n?ws", "nxws", true},
		{"n?ws", "nws", false},
		{"[ab]ews", "aews", true},
		{"[ab]ews", "cews", false},
	}
	for _, c := range cases {
		re, err := compileGlob(c.pattern)
		if err != nil {
			t.Fatalf("compileGlob(%q): %v", c.pattern, err)
		}
		if got := re.MatchString(c.channel); got != c.want {
			t.Errorf("pattern %q vs channel %q: got %v, want %v", c.pattern, c.channel, got, c.want)
		}
	}
}
