package models

import (
	"strconv"
	"time"
)

type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseAwaitingQuestion Phase = "awaiting_question"
	PhaseAwaitingPhone    Phase = "awaiting_phone"
)

// Draft is a completed dialogue that has not been forwarded yet
type Draft struct {
	RequesterID   int64
	RequesterName string // Telegram username, may be empty
	Question      string
	Phone         string
}

// Submission is a forwarded question waiting for a reviewer reply.
// It is keyed by the id of the message that carried it into the reviewer chat.
type Submission struct {
	ForwardID     string    `json:"forward_id"`
	RequesterID   int64     `json:"user_id"`
	RequesterName string    `json:"username,omitempty"`
	Question      string    `json:"question"`
	Phone         string    `json:"phone"`
	CreatedAt     time.Time `json:"created_at"`
}

// Label is how the requester is shown to reviewers
func (s Submission) Label() string {
	return Draft{RequesterID: s.RequesterID, RequesterName: s.RequesterName}.Label()
}

func (d Draft) Label() string {
	if d.RequesterName != "" {
		return "@" + d.RequesterName
	}
	return strconv.FormatInt(d.RequesterID, 10)
}
