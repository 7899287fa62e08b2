package constant

// Conversation kinds
const (
	KindPrivate = "private"
	KindGroup   = "group"
	KindChannel = "channel"
)

// SavedMessagesName is shown for a private conversation with oneself
const SavedMessagesName = "Saved messages"

// VoiceMessageText is the card text for a last message that only carries voice data
const VoiceMessageText = "Voice message"

// Delivery status of the current user's own last message
const (
	DeliverySent = "sent"
	DeliverySeen = "seen"
)

// Transport event names (wire level)
const (
	EventNewMessage        = "newMessage"
	EventUpdateLastMsgData = "updateLastMsgData"
	EventSeenMsg           = "seenMsg"
	EventOnlineUsers       = "onlineUsers"
	EventJoining           = "joining"
)

// Local subscription event names, pushed to the UI over /conversation/join
const (
	EventConversation = "conversation"
	EventError        = "error"
)

// Transport kinds
const (
	TransportWebSocket = "ws"
	TransportNATS      = "nats"
)

// Draft backends
const (
	DraftBackendSQLite = "sqlite"
	DraftBackendRedis  = "redis"
	DraftBackendMySQL  = "mysql"
)

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyDraft = "draft:%s" // draft:{conversation_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "convsync:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// RedisKeyDraft returns the draft key pattern with prefix
func RedisKeyDraft() string { return redisKeyPrefix + redisKeyDraft }

// NATS subjects
const (
	// SubjectEventsPrefix is followed by the user id: convsync.events.{user_id}
	SubjectEventsPrefix = "convsync.events."
	// SubjectCommandsPrefix is followed by the user id: convsync.commands.{user_id}
	SubjectCommandsPrefix = "convsync.commands."
)

// BuildEventsSubject builds the per-user inbound event subject
func BuildEventsSubject(userId string) string {
	return SubjectEventsPrefix + userId
}

// BuildCommandsSubject builds the per-user outbound command subject
func BuildCommandsSubject(userId string) string {
	return SubjectCommandsPrefix + userId
}
