package entity

// LastMessage is the newest message shown on a conversation card
type LastMessage struct {
	Id        string   `json:"id"`
	SenderId  string   `json:"sender_id"`
	Text      *string  `json:"text,omitempty"`
	HasVoice  bool     `json:"has_voice"`
	CreatedAt int64    `json:"created_at"`
	SeenBy    []string `json:"seen_by"`
	PinnedAt  *int64   `json:"pinned_at,omitempty"`
}

// Clone returns a deep copy so snapshots never share slices with the store
func (m *LastMessage) Clone() *LastMessage {
	if m == nil {
		return nil
	}
	c := *m
	if m.Text != nil {
		text := *m.Text
		c.Text = &text
	}
	if m.PinnedAt != nil {
		pinnedAt := *m.PinnedAt
		c.PinnedAt = &pinnedAt
	}
	if m.SeenBy != nil {
		c.SeenBy = make([]string, len(m.SeenBy))
		copy(c.SeenBy, m.SeenBy)
	}
	return &c
}

// IsNewerThan reports whether m should replace cur. Ties keep the existing value.
func (m *LastMessage) IsNewerThan(cur *LastMessage) bool {
	if m == nil {
		return false
	}
	if cur == nil {
		return true
	}
	return m.CreatedAt > cur.CreatedAt
}

// IsSeen reports whether anyone has acknowledged the message
func (m *LastMessage) IsSeen() bool {
	return m != nil && len(m.SeenBy) > 0
}
