package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sentiment-globe/internal/store"
)

// phoenixMessage is the envelope used by the realtime websocket.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type changePayload struct {
	Data struct {
		Type      string    `json:"type"`
		Table     string    `json:"table"`
		Record    store.Row `json:"record"`
		OldRecord store.Row `json:"old_record"`
	} `json:"data"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	if c.config.Key != "" {
		q.Set("apikey", c.config.Key)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func topicFor(table store.Table) string {
	return "realtime:public:" + string(table)
}

// Watch opens a realtime channel for table. The returned channel closes when the
// connection drops or ctx ends; reconnecting is left to the caller.
func (c *Client) Watch(ctx context.Context, table store.Table) (<-chan store.Change, error) {
	endpoint, err := c.realtimeURL()
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	topic := topicFor(table)
	join := map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]string{
				{"event": "*", "schema": "public", "table": string(table)},
			},
		},
	}
	payload, _ := json.Marshal(join)

	w := &wsWriter{conn: conn}
	if err := w.send(phoenixMessage{Topic: topic, Event: "phx_join", Payload: payload, Ref: "1"}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("realtime join %s: %w", table, err)
	}

	out := make(chan store.Change, 16)
	done := make(chan struct{})
	log := c.log.WithField("table", table)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	go func() {
		ticker := time.NewTicker(c.config.Heartbeat)
		defer ticker.Stop()
		ref := 1
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ref++
				msg := phoenixMessage{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage("{}"), Ref: strconv.Itoa(ref)}
				if err := w.send(msg); err != nil {
					log.WithError(err).Debug("heartbeat failed")
					return
				}
			}
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Warn("realtime connection lost")
				}
				return
			}

			var msg phoenixMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.WithError(err).Debug("skipping malformed realtime frame")
				continue
			}
			change, ok, err := decodeFrame(table, topic, msg)
			if err != nil {
				log.WithError(err).Warn("realtime channel error")
				return
			}
			if !ok {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// decodeFrame turns one realtime frame into a Change. ok is false for frames that
// carry no change; err is set when the server rejected the channel.
func decodeFrame(table store.Table, topic string, msg phoenixMessage) (change store.Change, ok bool, err error) {
	if msg.Topic != topic {
		return store.Change{}, false, nil
	}
	switch msg.Event {
	case "phx_reply":
		var reply replyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return store.Change{}, false, nil
		}
		if reply.Status == "error" {
			return store.Change{}, false, fmt.Errorf("join rejected: %s", reply.Response)
		}
		return store.Change{}, false, nil
	case "phx_error", "phx_close":
		return store.Change{}, false, fmt.Errorf("channel %s", strings.TrimPrefix(msg.Event, "phx_"))
	case "postgres_changes":
		var p changePayload
		dec := json.NewDecoder(bytes.NewReader(msg.Payload))
		dec.UseNumber()
		if err := dec.Decode(&p); err != nil {
			return store.Change{}, false, nil
		}
		change = store.Change{Table: table, Op: strings.ToUpper(p.Data.Type)}
		if len(p.Data.Record) > 0 {
			change.Rows = append(change.Rows, p.Data.Record)
		}
		if len(p.Data.OldRecord) > 0 {
			change.Rows = append(change.Rows, p.Data.OldRecord)
		}
		return change, true, nil
	}
	return store.Change{}, false, nil
}

// wsWriter serializes writes; gorilla connections allow one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(msg phoenixMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(msg)
}
