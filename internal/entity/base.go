package entity

import (
	"time"

	"github.com/mbeoliero/convsync/pkg/constant"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// ConversationKind is the closed set of conversation kinds
type ConversationKind string

const (
	KindPrivate ConversationKind = constant.KindPrivate
	KindGroup   ConversationKind = constant.KindGroup
	KindChannel ConversationKind = constant.KindChannel
)

// ParseConversationKind converts a wire kind, reporting false for unknown values
func ParseConversationKind(s string) (ConversationKind, bool) {
	switch ConversationKind(s) {
	case KindPrivate, KindGroup, KindChannel:
		return ConversationKind(s), true
	default:
		return "", false
	}
}

// IsPrivate checks if the kind is a one-to-one conversation
func (k ConversationKind) IsPrivate() bool {
	return k == KindPrivate
}
