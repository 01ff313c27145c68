/*
Copyright (C) 2026  HyperKV Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package pubsub implements exact-channel and glob-pattern
// subscriptions, fan-out delivery to bounded per-subscriber queues,
// and an optional websocket bridge (see the wsbridge subpackage).
package pubsub

import (
	"regexp"
	"sync"

	"github.com/launix-de/NonLockingReadMap"
)

type subscriberSet struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[string]*Subscriber)}
}

func (s *subscriberSet) add(sub *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = sub
}

func (s *subscriberSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *subscriberSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *subscriberSet) fanOut(msg Message) {
	s.mu.RLock()
	targets := make([]*Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		targets = append(targets, sub)
	}
	s.mu.RUnlock()
	for _, sub := range targets {
		sub.deliver(msg)
	}
}

// channelEntry is an exact-match registry entry. It satisfies
// NonLockingReadMap.KeyGetter[string].
type channelEntry struct {
	name string
	subs *subscriberSet
}

func (c *channelEntry) GetKey() string    { return c.name }
func (c *channelEntry) ComputeSize() uint { return uint(len(c.name)) + 32 }

// patternEntry is a glob-match registry entry, holding the pattern's
// compiled regexp once per subscription as §4.9 requires.
type patternEntry struct {
	pattern  string
	compiled *regexp.Regexp
	subs     *subscriberSet
}

func (p *patternEntry) GetKey() string    { return p.pattern }
func (p *patternEntry) ComputeSize() uint { return uint(len(p.pattern)) + 64 }

// Broker holds the two subscription registries and fans out
// published messages to matching subscribers' bounded queues.
// Registry mutation (new channel/pattern) is rare relative to
// publish, so both registries use the read-optimized
// NonLockingReadMap rather than a plain mutex-guarded map.
type Broker struct {
	channels NonLockingReadMap.NonLockingReadMap[channelEntry, string]
	patterns NonLockingReadMap.NonLockingReadMap[patternEntry, string]

	queueSize int
	policy    OverflowPolicy
}

// NewBroker constructs an empty Broker with the given default queue
// size and overflow policy for subscribers that don't override them.
func NewBroker(queueSize int, policy OverflowPolicy) *Broker {
	return &Broker{
		channels:  NonLockingReadMap.New[channelEntry, string](),
		patterns:  NonLockingReadMap.New[patternEntry, string](),
		queueSize: queueSize,
		policy:    policy,
	}
}

// Subscribe registers sub on an exact channel, creating the
// channel's registry entry if this is its first subscriber.
func (b *Broker) Subscribe(channel string, sub *Subscriber) {
	entry := b.channels.Get(channel)
	if entry == nil {
		newEntry := &channelEntry{name: channel, subs: newSubscriberSet()}
		if existing := b.channels.Set(newEntry); existing != nil {
			entry = existing
		} else {
			entry = newEntry
		}
	}
	entry.subs.add(sub)
}

// Unsubscribe removes subscriberID from an exact channel.
func (b *Broker) Unsubscribe(channel, subscriberID string) {
	entry := b.channels.Get(channel)
	if entry == nil {
		return
	}
	entry.subs.remove(subscriberID)
	if entry.subs.len() == 0 {
		b.channels.Remove(channel)
	}
}

// PSubscribe registers sub on a glob pattern, compiling it once.
func (b *Broker) PSubscribe(pattern string, sub *Subscriber) error {
	entry := b.patterns.Get(pattern)
	if entry == nil {
		compiled, err := compileGlob(pattern)
		if err != nil {
			return err
		}
		newEntry := &patternEntry{pattern: pattern, compiled: compiled, subs: newSubscriberSet()}
		if existing := b.patterns.Set(newEntry); existing != nil {
			entry = existing
		} else {
			entry = newEntry
		}
	}
	entry.subs.add(sub)
	return nil
}

// PUnsubscribe removes subscriberID from a glob pattern subscription.
func (b *Broker) PUnsubscribe(pattern, subscriberID string) {
	entry := b.patterns.Get(pattern)
	if entry == nil {
		return
	}
	entry.subs.remove(subscriberID)
	if entry.subs.len() == 0 {
		b.patterns.Remove(pattern)
	}
}

// Publish fans payload out to every exact subscriber of channel and
// every pattern subscriber whose glob matches channel. It returns the
// number of subscribers the message was attempted against (Redis's
// PUBLISH return value), counting a subscriber once per matching
// channel/pattern pair.
func (b *Broker) Publish(channel string, payload []byte) int {
	delivered := 0
	if entry := b.channels.Get(channel); entry != nil {
		n := entry.subs.len()
		entry.subs.fanOut(Message{Channel: channel, Payload: payload})
		delivered += n
	}
	for _, entry := range b.patterns.GetAll() {
		if !entry.compiled.MatchString(channel) {
			continue
		}
		n := entry.subs.len()
		entry.subs.fanOut(Message{Channel: channel, Pattern: entry.pattern, Payload: payload})
		delivered += n
	}
	return delivered
}

// NewSubscriberForBroker is a convenience constructor wiring a
// Subscriber to this Broker's configured default queue size/policy.
func (b *Broker) NewSubscriberForBroker(id string, onKilled func(reason string)) *Subscriber {
	return NewSubscriber(id, b.queueSize, b.policy, onKilled)
}
