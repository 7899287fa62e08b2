package entity

// Draft represents a persisted unsent text for one conversation
type Draft struct {
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;primaryKey;size:191"`
	Text           string `json:"text" gorm:"column:text;type:text"`
	UpdatedAt      int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Draft
func (Draft) TableName() string {
	return "drafts"
}
