package model

type ConversationStatus string

const (
	StatusActive           ConversationStatus = "active"
	StatusExtensionPending ConversationStatus = "extension_pending"
	StatusPhotoExchange    ConversationStatus = "photo_exchange"
	StatusFriendsForever   ConversationStatus = "friends_forever"
	StatusClosed           ConversationStatus = "closed"
)

// LiveStatuses are the statuses a conversation can be rejoined in.
var LiveStatuses = []ConversationStatus{
	StatusActive,
	StatusExtensionPending,
	StatusPhotoExchange,
	StatusFriendsForever,
}

// IsLive reports whether the conversation still has a room.
func (s ConversationStatus) IsLive() bool {
	return s != StatusClosed && s != ""
}

// HasTimer reports whether the status is part of the timed extend-or-exit cycle.
func (s ConversationStatus) HasTimer() bool {
	switch s {
	case StatusActive, StatusExtensionPending, StatusPhotoExchange:
		return true
	}
	return false
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeVoice  MessageType = "voice"
	MessageTypeSystem MessageType = "system"
)

type Vote string

const (
	VoteExtend         Vote = "extend"
	VoteLeave          Vote = "leave"
	VoteFriendsForever Vote = "friends_forever"
)

func (v Vote) Valid() bool {
	switch v {
	case VoteExtend, VoteLeave, VoteFriendsForever:
		return true
	}
	return false
}

type ExtensionResult string

const (
	ResultClosed         ExtensionResult = "closed"
	ResultFriendsForever ExtensionResult = "friends_forever"
	ResultPhotoExchange  ExtensionResult = "photo_exchange"
)

// ResolveVotes maps one round's pair of votes to its outcome. Any leave
// closes, unanimous friends_forever is permanent, everything else extends.
func ResolveVotes(a, b Vote) ExtensionResult {
	switch {
	case a == VoteLeave || b == VoteLeave:
		return ResultClosed
	case a == VoteFriendsForever && b == VoteFriendsForever:
		return ResultFriendsForever
	default:
		return ResultPhotoExchange
	}
}

type PointsEvent string

const (
	PointsEventParticipation  PointsEvent = "participation"
	PointsEventExtension      PointsEvent = "extension"
	PointsEventFriendsForever PointsEvent = "friends_forever"
	PointsEventRating         PointsEvent = "rating"
)
