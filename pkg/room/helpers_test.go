package room

import (
	"errors"
	"sync"
	"testing"
	"time"

	"roomrelay/pkg/protocol"
)

var errGone = errors.New("recipient gone")

type sent struct {
	Event string
	Data  interface{}
}

// recorder is an in-memory Conn that keeps everything sent to it.
type recorder struct {
	id string

	mu     sync.Mutex
	events []sent
	gone   bool
}

func newRecorder(id string) *recorder {
	return &recorder{id: id}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(event string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return errGone
	}
	r.events = append(r.events, sent{Event: event, Data: data})
	return nil
}

func (r *recorder) vanish() {
	r.mu.Lock()
	r.gone = true
	r.mu.Unlock()
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func (r *recorder) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.events...)
}

// named returns the payloads of every event with the given name.
func (r *recorder) named(event string) []interface{} {
	var out []interface{}
	for _, e := range r.all() {
		if e.Event == event {
			out = append(out, e.Data)
		}
	}
	return out
}

func (r *recorder) last(t *testing.T, event string) interface{} {
	t.Helper()
	got := r.named(event)
	if len(got) == 0 {
		t.Fatalf("%s received no %s event", r.id, event)
	}
	return got[len(got)-1]
}

// waitFor polls until the recorder has received n events named event.
func (r *recorder) waitFor(t *testing.T, event string, n int) []interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.named(event); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s: timed out waiting for %d %s events, have %d", r.id, n, event, len(r.named(event)))
	return nil
}

func rosterNames(t *testing.T, data interface{}) map[string]string {
	t.Helper()
	users, ok := data.([]protocol.UserInfo)
	if !ok {
		t.Fatalf("roster has type %T", data)
	}
	out := make(map[string]string, len(users))
	for _, u := range users {
		if _, dup := out[u.ID]; dup {
			t.Fatalf("roster lists %s twice", u.ID)
		}
		out[u.ID] = u.Username
	}
	return out
}

// announce connects id, joins roomID and submits id as the username.
func announce(t *testing.T, c *Coordinator, roomID, id string) *recorder {
	t.Helper()
	conn := newRecorder(id)
	c.Connect(conn)
	if err := c.JoinRoom(id, roomID); err != nil {
		t.Fatalf("JoinRoom(%s, %s): %v", id, roomID, err)
	}
	if err := c.SubmitUsername(id, id); err != nil {
		t.Fatalf("SubmitUsername(%s): %v", id, err)
	}
	return conn
}
