// Package format builds the texts the bot sends to users and reviewers.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/lawrelay/lawyer-bot/internal/dialogue"
	"github.com/lawrelay/lawyer-bot/internal/models"
)

// NewQuestionButton is the reply keyboard label that restarts the dialogue
const NewQuestionButton = "Ask a lawyer a new question"

const welcome = "Hello!\n\n" +
	"To stop the bot, use the /stop command.\n" +
	"To start again, use /start or press the \"" + NewQuestionButton + "\" button.\n\n" +
	"Ask yourself a few questions:\n\n" +
	"1. Will solving my issue make my life easier?\n" +
	"2. Am I ready to act on the lawyer's answer?\n" +
	"3. Am I ready to settle this issue for good?\n\n" +
	"Only if the answer to all of them is Yes!\n\n" +
	"Write your question and I will pass it on to the lawyers."

const (
	Help = "Commands:\n" +
		"/start - Ask the lawyers a question\n" +
		"/stop - Stop the current question\n" +
		"/help - Show this help message"

	Sent           = "Your question was sent to the lawyers. Thank you!"
	ForwardFailed  = "Could not forward your question to the lawyers. Please send your phone number again."
	UseReply       = "Please use the \"Reply\" feature on the question message."
	NotFound       = "Could not find the user who asked this question."
	EmptyAnswer    = "Only text replies can be passed on to the user."
	DeliveryFailed = "Could not deliver the answer to the user. Reply to the question again to retry."
	NoPending      = "No questions are waiting for an answer."
)

// Prompt returns the user-facing text for a dialogue prompt
func Prompt(p dialogue.Prompt) string {
	switch p {
	case dialogue.PromptWelcome:
		return welcome
	case dialogue.PromptNewQuestion:
		return "Write your new question:"
	case dialogue.PromptStopped:
		return "You stopped the current process. To start again, use the /start command."
	case dialogue.PromptEmptyQuestion:
		return "Please enter the text of your question."
	case dialogue.PromptAskPhone:
		return "Enter your phone number in the format +79241234567."
	case dialogue.PromptBadPhone:
		return "Please enter a valid phone number."
	case dialogue.PromptIdle:
		return "Use /start to ask the lawyers a question."
	}
	return ""
}

// Forward creates the message posted to the reviewer chat
func Forward(d models.Draft) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("New question from %s:\n\n", d.Label()))
	sb.WriteString(fmt.Sprintf("Question: %s\n", d.Question))
	sb.WriteString(fmt.Sprintf("Phone: %s\n", d.Phone))
	sb.WriteString(fmt.Sprintf("User ID: %d", d.RequesterID))

	return sb.String()
}

// Answer wraps a reviewer reply for the requester
func Answer(text string) string {
	return "Answer to your question:\n\n" + text
}

// Pending lists submissions still waiting for a reply, oldest first
func Pending(subs []models.Submission, now time.Time) string {
	if len(subs) == 0 {
		return NoPending
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 PENDING QUESTIONS (%d)\n\n", len(subs)))
	for _, s := range subs {
		sb.WriteString(fmt.Sprintf("━━━ #%s • %s", s.ForwardID, s.Label()))
		if !s.CreatedAt.IsZero() {
			sb.WriteString(fmt.Sprintf(" • %s ago", now.Sub(s.CreatedAt).Truncate(time.Minute)))
		}
		sb.WriteString("\n")
		sb.WriteString(truncate(s.Question, 80))
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
