package store

import "time"

// Kind classifies a notification for display.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// DefaultNotifyDuration is the auto-dismiss delay for toasts.
const DefaultNotifyDuration = 3 * time.Second

// Notification is one toast entry in the notifications list.
type Notification struct {
	ID       string        `json:"id"`
	Message  string        `json:"message"`
	Kind     Kind          `json:"type"`
	Duration time.Duration `json:"duration"`
}

// Notify appends a notification and returns its id.
// When duration > 0 the entry is dismissed automatically after it elapses.
func (s *Store) Notify(message string, kind Kind, duration time.Duration) string {
	n := Notification{
		ID:       s.ids.Generate(),
		Message:  message,
		Kind:     kind,
		Duration: duration,
	}

	s.Update(KeyNotifications, func(current any) any {
		list, _ := current.([]Notification)
		out := make([]Notification, len(list), len(list)+1)
		copy(out, list)
		return append(out, n)
	})

	if duration > 0 {
		id := n.ID
		s.scheduler.AfterFunc(duration, func() {
			s.Dismiss(id)
		})
	}
	return n.ID
}

// Dismiss removes the notification with id. Unknown ids are ignored.
func (s *Store) Dismiss(id string) {
	s.Update(KeyNotifications, func(current any) any {
		list, _ := current.([]Notification)
		kept := make([]Notification, 0, len(list))
		for _, n := range list {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		if len(kept) == len(list) {
			return current
		}
		return kept
	})
}

// Notifications returns a copy of the current notification list.
func (s *Store) Notifications() []Notification {
	list, _ := s.Get(KeyNotifications).([]Notification)
	out := make([]Notification, len(list))
	copy(out, list)
	return out
}
