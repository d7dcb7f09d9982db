package model

import "time"

// EventName identifies a named event on the wire
type EventName string

// Client -> server events
const (
	EventJoinChat        EventName = "join_chat"
	EventChatMessage     EventName = "chat_message"
	EventMessageReaction EventName = "message_reaction"
	EventVoteMessage     EventName = "vote_message"
	EventPrivateMessage  EventName = "private_message"
	EventAdminAuth       EventName = "admin_auth"
	EventAdminDeleteMsg  EventName = "admin_delete_msg"
	EventAdminKickUser   EventName = "admin_kick_user"
	EventAdminPurgeAll   EventName = "admin_purge_all"
)

// Server -> client events
const (
	EventSystemMessage     EventName = "system_message"
	EventChatHistory       EventName = "chat_history"
	EventUpdateRoster      EventName = "update_roster"
	EventAdminAnnouncement EventName = "admin_announcement"
	EventAdminAuthSuccess  EventName = "admin_auth_success"
	EventAdminAuthFail     EventName = "admin_auth_fail"
	EventDeleteMessage     EventName = "delete_message"
	EventPurgeAllMessages  EventName = "purge_all_messages"
	EventKickedOut         EventName = "kicked_out"
	EventMessageVoted      EventName = "message_voted"
	EventReputationUpdate  EventName = "reputation_update"
)

// Event is a named event plus its payload, as framed on the wire
type Event struct {
	Name EventName `json:"event"`
	Data any       `json:"data,omitempty"`
}

// SystemMessagePayload is the body of system_message and
// admin_announcement events
type SystemMessagePayload struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ReactionPayload is shared by the client intent and the broadcast
type ReactionPayload struct {
	MsgID    string `json:"msgId"`
	Reaction string `json:"reaction"`
	Username string `json:"username,omitempty"`
}

// VotePayload is the client vote intent
type VotePayload struct {
	MsgID    string `json:"msgId"`
	VoteType int    `json:"voteType"` // 1 or -1
}

// MessageVotedPayload broadcasts a message's new score
type MessageVotedPayload struct {
	MsgID string `json:"msgId"`
	Score int    `json:"score"`
}

// ReputationUpdatePayload is the ticker event for an author's new total
type ReputationUpdatePayload struct {
	Username   string `json:"username"`
	Reputation int    `json:"reputation"`
}

// PrivateMessageSendPayload is the client intent for a directed message
type PrivateMessageSendPayload struct {
	TargetID ConnID `json:"targetId"`
	Text     string `json:"text"`
}

// PrivateMessagePayload is delivered to the target and echoed to the
// sender (IsEcho set, TargetID populated on the echo copy)
type PrivateMessagePayload struct {
	SenderID   ConnID    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	IsEcho     bool      `json:"isEcho,omitempty"`
	TargetID   ConnID    `json:"targetId,omitempty"`
}

// ChatMessageSendPayload is the client intent for a chat message
type ChatMessageSendPayload struct {
	Text string `json:"text"`
}

// AdminAuthPayload carries a shared-secret elevation attempt
type AdminAuthPayload struct {
	PIN string `json:"pin"`
}

// AdminDeletePayload names the ledger entry to remove
type AdminDeletePayload struct {
	MsgID string `json:"msgId"`
}

// AdminKickPayload names the session to disconnect
type AdminKickPayload struct {
	TargetID ConnID `json:"targetId"`
}
