package events

import (
	"context"
	"encoding/json"
	"sync"
)

// Message - опубликованное событие.
type Message struct {
	Key  string
	Body json.RawMessage
}

// Recorder запоминает события в памяти; используется в тестах.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) PublishJSON(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.messages = append(r.messages, Message{Key: key, Body: b})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		keys = append(keys, m.Key)
	}
	return keys
}
