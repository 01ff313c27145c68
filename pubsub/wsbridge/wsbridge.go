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

// Package wsbridge exposes the pub/sub broker to browser clients over
// a websocket, so subscribing doesn't require a raw RESP client.
package wsbridge

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hyperkv-project/hyperkv/pubsub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientRequest is the JSON shape a websocket client sends to manage
// its subscriptions: {"op": "subscribe"|"psubscribe"|"unsubscribe"|"punsubscribe", "channel": "..."}.
type clientRequest struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
}

// clientMessage is what the bridge pushes down for a delivered
// pub/sub Message.
type clientMessage struct {
	Channel string `json:"channel"`
	Pattern string `json:"pattern,omitempty"`
	Payload string `json:"payload"`
}

// Handler upgrades HTTP connections to websockets and bridges
// SUBSCRIBE/PSUBSCRIBE/UNSUBSCRIBE/PUNSUBSCRIBE plus delivery against
// a pubsub.Broker.
type Handler struct {
	broker   *pubsub.Broker
	nextID   func() string
	onLogErr func(err error)
}

// NewHandler constructs a websocket bridge Handler over broker. nextID
// mints a fresh subscriber id per connection (e.g. uuid.NewString).
func NewHandler(broker *pubsub.Broker, nextID func() string, onLogErr func(err error)) *Handler {
	return &Handler{broker: broker, nextID: nextID, onLogErr: onLogErr}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.onLogErr != nil {
			h.onLogErr(fmt.Errorf("wsbridge: upgrade: %w", err))
		}
		return
	}
	defer ws.Close()

	id := h.nextID()
	subscribedChannels := make(map[string]bool)
	subscribedPatterns := make(map[string]bool)

	sub := h.broker.NewSubscriberForBroker(id, func(reason string) {
		ws.WriteJSON(map[string]string{"error": reason})
		ws.Close()
	})
	defer func() {
		for ch := range subscribedChannels {
			h.broker.Unsubscribe(ch, id)
		}
		for p := range subscribedPatterns {
			h.broker.PUnsubscribe(p, id)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var req clientRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				continue
			}
			switch req.Op {
			case "subscribe":
				h.broker.Subscribe(req.Channel, sub)
				subscribedChannels[req.Channel] = true
			case "unsubscribe":
				h.broker.Unsubscribe(req.Channel, id)
				delete(subscribedChannels, req.Channel)
			case "psubscribe":
				if err := h.broker.PSubscribe(req.Channel, sub); err == nil {
					subscribedPatterns[req.Channel] = true
				}
			case "punsubscribe":
				h.broker.PUnsubscribe(req.Channel, id)
				delete(subscribedPatterns, req.Channel)
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.Queue():
			if !ok {
				return
			}
			out := clientMessage{Channel: msg.Channel, Pattern: msg.Pattern, Payload: string(msg.Payload)}
			if err := ws.WriteJSON(out); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
