// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package pubsub

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// subscriberBuffer is how many pending messages a subscriber channel
// holds before Publish drops further messages for it; metadata bursts
// (e.g. every active recorder's signal report on one status tick)
// should never block the publishing goroutine.
const subscriberBuffer = 64

func makeInMemoryPubSub() PubSub {
	return &inMemoryPubSub{
		topics: xsync.NewMap[string, *topicSubscribers](),
	}
}

type topicSubscribers struct {
	mu   sync.Mutex
	subs map[*inMemorySubscription]struct{}
}

type inMemoryPubSub struct {
	topics *xsync.Map[string, *topicSubscribers]
}

func (ps *inMemoryPubSub) Publish(topic string, message []byte) error {
	t, ok := ps.topics.Load(topic)
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subs {
		select {
		case sub.ch <- message:
		default:
			// subscriber too slow; drop rather than block the publisher.
		}
	}
	return nil
}

func (ps *inMemoryPubSub) Subscribe(topic string) Subscription {
	t, _ := ps.topics.LoadOrStore(topic, &topicSubscribers{subs: make(map[*inMemorySubscription]struct{})})

	sub := &inMemorySubscription{
		ch:    make(chan []byte, subscriberBuffer),
		topic: t,
	}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	return sub
}

func (ps *inMemoryPubSub) Close() error {
	return nil
}

type inMemorySubscription struct {
	ch    chan []byte
	topic *topicSubscribers
}

func (s *inMemorySubscription) Close() error {
	s.topic.mu.Lock()
	delete(s.topic.subs, s)
	s.topic.mu.Unlock()
	close(s.ch)
	return nil
}

func (s *inMemorySubscription) Channel() <-chan []byte {
	return s.ch
}
