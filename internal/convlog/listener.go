package convlog

import (
	"time"

	"github.com/ashureev/careerpath/internal/conversation"
	"github.com/ashureev/careerpath/internal/domain"
)

// Listener turns controller events into transcript lines. Composing
// toggles are not logged.
func Listener(l Logger, channel string) conversation.Listener {
	return conversation.ListenerFunc(func(e conversation.Event) {
		switch e.Type {
		case conversation.EventMessage:
			if e.Message == nil {
				return
			}
			ev := Event{
				Timestamp:  e.Message.Timestamp.UTC().Format(time.RFC3339Nano),
				SessionID:  e.SessionID,
				Channel:    channel,
				Direction:  "outbound",
				EventType:  "assistant_message",
				ContentRaw: e.Message.Content,
				Meta:       map[string]any{"message_id": e.Message.ID},
			}
			if e.Message.Role == domain.RoleUser {
				ev.Direction = "inbound"
				ev.EventType = "user_message"
			}
			l.Log(ev)
		case conversation.EventSession:
			l.Log(Event{
				SessionID: e.SessionID,
				Channel:   channel,
				Direction: "internal",
				EventType: "session_" + e.Phase,
				Meta:      map[string]any{"title": e.Title},
			})
		case conversation.EventDeleted:
			l.Log(Event{
				SessionID: e.SessionID,
				Channel:   channel,
				Direction: "internal",
				EventType: "session_deleted",
			})
		}
	})
}
