// Package integrationstest holds helpers for exercising integrations in
// tests.
package integrationstest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

type Entry struct {
	Level   string
	Message string
	Fields  []zap.Field
}

// RecordingLogger is a BotLogger that keeps every entry in memory.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) Error(_ context.Context, msg string, fields ...zap.Field) {
	l.record("error", msg, fields)
}

func (l *RecordingLogger) Info(_ context.Context, msg string, fields ...zap.Field) {
	l.record("info", msg, fields)
}

func (l *RecordingLogger) record(level, msg string, fields []zap.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Message: msg, Fields: fields})
}

func (l *RecordingLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Errors returns the messages logged at error severity.
func (l *RecordingLogger) Errors() []string {
	var out []string
	for _, e := range l.Entries() {
		if e.Level == "error" {
			out = append(out, e.Message)
		}
	}
	return out
}

// Field returns the first field with the given key across error entries.
func (l *RecordingLogger) Field(key string) (zap.Field, bool) {
	for _, e := range l.Entries() {
		for _, f := range e.Fields {
			if f.Key == key {
				return f, true
			}
		}
	}
	return zap.Field{}, false
}

// Upstream is an httptest server recording every request it receives.
type Upstream struct {
	*httptest.Server
	calls    atomic.Int64
	mu       sync.Mutex
	requests []*http.Request
}

func NewUpstream(t *testing.T, handler http.HandlerFunc) *Upstream {
	t.Helper()
	u := &Upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.mu.Lock()
		u.requests = append(u.requests, r.Clone(r.Context()))
		u.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(u.Server.Close)
	return u
}

func (u *Upstream) Calls() int {
	return int(u.calls.Load())
}

func (u *Upstream) Requests() []*http.Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*http.Request(nil), u.requests...)
}

// WriteJSON writes body with a JSON content type and the given status.
func WriteJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
