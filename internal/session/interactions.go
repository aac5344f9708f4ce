package session

// InteractionFields is an interaction record in data-model form.
type InteractionFields struct {
	ID              string
	Type            string
	LearnerResponse string
	Result          string
	Weighting       string
	Latency         string
	Timestamp       string
}

// WriteInteraction stores rec in the interactions collection, reusing the
// slot whose id matches rec.ID, or appending a new slot.
func WriteInteraction(b Bridge, rec InteractionFields) error {
	if !Live(b) {
		return ErrNotActive
	}
	n := Count(b, CollectionInteractions)
	slot := n
	for i := 0; i < n; i++ {
		if b.GetField(IndexedField(CollectionInteractions, i, "id")) == rec.ID {
			slot = i
			break
		}
	}

	writes := []struct{ leaf, value string }{
		{"id", rec.ID},
		{"type", rec.Type},
		{"learner_response", rec.LearnerResponse},
		{"result", rec.Result},
		{"weighting", rec.Weighting},
		{"latency", rec.Latency},
		{"timestamp", rec.Timestamp},
	}
	for _, w := range writes {
		if w.value == "" {
			continue
		}
		if err := b.SetField(IndexedField(CollectionInteractions, slot, w.leaf), w.value); err != nil {
			return err
		}
	}
	return nil
}
