// Package view folds a conversation's initial message snapshot and its
// subsequent change feed into one consistent, ordered state. The
// reducer is pure: it never touches the network and tolerates the
// feed's at-least-once, loosely-ordered delivery.
package view

import "github.com/yourorg/dm-service/internal/models"

// View is the ordered message state of one open conversation. It is
// not safe for concurrent use; callers serialize access.
type View struct {
	messages []models.Message
	index    map[string]int // message id hex -> position
}

func New() *View {
	return &View{index: make(map[string]int)}
}

// ApplyInitial replaces the state wholesale with the snapshot. Called
// once per conversation lifetime, before any feed event is applied.
func (v *View) ApplyInitial(msgs []models.Message) {
	v.messages = make([]models.Message, len(msgs))
	v.index = make(map[string]int, len(msgs))
	for i, m := range msgs {
		v.messages[i] = m
		v.index[m.ID.Hex()] = i
	}
}

// Apply folds one change event into the view and reports whether the
// state changed. Redelivered events are no-ops: an insert for a known
// id is ignored, an update or delete that matches the stored snapshot
// short-circuits, and a second delete finds the tombstone already in
// place. Updates and deletes for ids the snapshot missed are appended,
// covering the window between the snapshot read and the subscription.
func (v *View) Apply(ev models.ChangeEvent) bool {
	switch ev.Kind {
	case models.EventInserted:
		if _, ok := v.index[ev.Message.ID.Hex()]; ok {
			return false
		}
		v.append(ev.Message)
		return true
	case models.EventUpdated:
		return v.replace(ev.Message)
	case models.EventDeleted:
		return v.replace(ev.Message.Tombstone())
	default:
		return false
	}
}

func (v *View) replace(m models.Message) bool {
	i, ok := v.index[m.ID.Hex()]
	if !ok {
		v.append(m)
		return true
	}
	if v.messages[i].Equal(m) {
		return false
	}
	v.messages[i] = m
	return true
}

func (v *View) append(m models.Message) {
	v.index[m.ID.Hex()] = len(v.messages)
	v.messages = append(v.messages, m)
}

// Messages returns a copy of the current ordered state.
func (v *View) Messages() []models.Message {
	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

func (v *View) Len() int { return len(v.messages) }
