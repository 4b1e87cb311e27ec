package domain

import (
	"bytes"
	"encoding/json"
)

// InteractionType is the kind code carried by every inbound interaction.
type InteractionType int

const (
	InteractionPing               InteractionType = 1
	InteractionApplicationCommand InteractionType = 2
)

// ResponseType is the kind code of an interaction response payload.
type ResponseType int

const (
	ResponsePong                     ResponseType = 1
	ResponseChannelMessageWithSource ResponseType = 4
)

const unknownUser = "unknown"

// Interaction is the subset of the chat-platform callback payload the
// pipeline reads. It lives only for the duration of one invocation.
type Interaction struct {
	Type          InteractionType `json:"type"`
	ID            string          `json:"id"`
	Token         string          `json:"token"`
	ApplicationID string          `json:"application_id,omitempty"`
	Data          *CommandData    `json:"data,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
}

type CommandData struct {
	Name    string          `json:"name"`
	Options []CommandOption `json:"options,omitempty"`
}

type CommandOption struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

type Member struct {
	User *User `json:"user,omitempty"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Invoker returns the user that triggered the interaction. Guild interactions
// carry it under member, direct messages at the top level.
func (i Interaction) Invoker() User {
	var u *User
	if i.Member != nil && i.Member.User != nil {
		u = i.Member.User
	} else if i.User != nil {
		u = i.User
	}
	out := User{ID: unknownUser, Username: unknownUser}
	if u == nil {
		return out
	}
	if u.ID != "" {
		out.ID = u.ID
	}
	if u.Username != "" {
		out.Username = u.Username
	}
	return out
}

// StringValue returns the option value as text. String values are unquoted,
// other scalars keep their JSON form, and a missing or null value is "".
func (o CommandOption) StringValue() string {
	raw := bytes.TrimSpace(o.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
