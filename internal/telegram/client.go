// Package telegram defines the contract with the MTProto collaborator.
// The analytics core never speaks the wire protocol itself; it issues
// method calls through a Client obtained from a Dialer and reacts to the
// typed error taxonomy in errors.go.
package telegram

import (
	"context"

	"channel_pulse/internal/domain"
)

// Supported protocol methods. Params are free-form but each method
// documents the keys it reads.
const (
	// MethodGetDialogs lists the user's dialogs. Params: "limit".
	MethodGetDialogs = "messages.getDialogs"
	// MethodGetFullChannel fetches channel statistics.
	// Params: "channel_id", "access_hash".
	MethodGetFullChannel = "channels.getFullChannel"
	// MethodGetHistory pages channel history newest-first.
	// Params: "channel_id", "access_hash", "limit", "offset_id",
	// "offset_date" (unix seconds, exclusive upper bound).
	MethodGetHistory = "messages.getHistory"
	// MethodSendCode starts a login challenge. Params: "phone_number".
	MethodSendCode = "auth.sendCode"
	// MethodSignIn confirms a login challenge.
	// Params: "phone_number", "phone_code_hash", "phone_code".
	MethodSignIn = "auth.signIn"
)

// Request is one protocol call.
type Request struct {
	Method string
	Params map[string]any
}

// Response carries the union of result shapes the core consumes.
// Fields irrelevant to the invoked method are zero.
type Response struct {
	Messages []HistoryMessage `json:"messages,omitempty"`
	Chats    []ChatSummary    `json:"chats,omitempty"`
	User     *UserInfo        `json:"user,omitempty"`
	Code     *SentCode        `json:"code,omitempty"`
}

// HistoryMessage is one message from a history page. The bridge resolves
// the author to a handle before handing it over.
type HistoryMessage struct {
	ID     int64  `json:"id"`
	Text   string `json:"text"`
	Author string `json:"author"`
	Date   int64  `json:"date"`
}

// ChatSummary identifies a channel found in the dialog list.
type ChatSummary struct {
	ChannelID    string `json:"channel_id"`
	AccessHash   string `json:"access_hash"`
	Title        string `json:"title"`
	Username     string `json:"username"`
	MemberCount  int    `json:"member_count"`
	MessageCount int    `json:"message_count"`
	About        string `json:"about"`
}

// UserInfo is the identity behind a session, returned by the probe.
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// SentCode is the login challenge handle returned by auth.sendCode.
type SentCode struct {
	PhoneCodeHash string `json:"phone_code_hash"`
}

// Client is one live protocol session for one user. Implementations are
// not safe for concurrent Invoke; callers serialize per user.
type Client interface {
	// Me probes the session with a lightweight identity call.
	Me(ctx context.Context) (*UserInfo, error)
	// Invoke issues a protocol call and maps wire failures onto the
	// typed errors in this package.
	Invoke(ctx context.Context, req Request) (*Response, error)
	// ExportSession returns the serialized auth state and data center
	// id for persistence.
	ExportSession() (authState string, dcID int)
	// Disconnect releases the remote-side connection.
	Disconnect(ctx context.Context) error
}

// Dialer builds a connected Client for a user. A nil session starts a
// fresh handshake; otherwise the persisted auth state is resumed.
type Dialer interface {
	Dial(ctx context.Context, userID string, sess *domain.Session) (Client, error)
}
