package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchStopsAtConsumer(t *testing.T) {
	var seen []string
	handlers := []Handler{
		HandlerFunc(func(ev Event) bool { seen = append(seen, "a"); return false }),
		nil,
		HandlerFunc(func(ev Event) bool { seen = append(seen, "b"); return ev.Type == EventKeyDown }),
		HandlerFunc(func(ev Event) bool { seen = append(seen, "c"); return false }),
	}

	assert.True(t, Dispatch(Event{Type: EventKeyDown}, handlers))
	assert.Equal(t, []string{"a", "b"}, seen)

	seen = nil
	assert.False(t, Dispatch(Event{Type: EventKeyUp}, handlers))
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "keyup", EventKeyUp.String())
	assert.Equal(t, "push", EventPush.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
