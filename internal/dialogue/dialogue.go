// Package dialogue tracks where each user is in the question/phone flow.
// State is in memory only; a restart puts every user back to idle.
package dialogue

import (
	"regexp"
	"strings"
	"sync"

	"github.com/lawrelay/lawyer-bot/internal/models"
)

// DefaultPhonePattern is a fixed format: a plus sign and exactly 11 digits.
var DefaultPhonePattern = regexp.MustCompile(`^\+\d{11}$`)

// Prompt identifies the text the transport should send back to the user.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptWelcome
	PromptNewQuestion
	PromptStopped
	PromptEmptyQuestion
	PromptAskPhone
	PromptBadPhone
	PromptIdle
)

// Result is the outcome of feeding one message to the machine. Draft is
// set only when the dialogue completed.
type Result struct {
	Prompt Prompt
	Phase  models.Phase
	Draft  *models.Draft
}

type session struct {
	phase    models.Phase
	question string
}

type Machine struct {
	mu       sync.Mutex
	sessions map[int64]session
	phone    *regexp.Regexp
}

// New creates a machine validating phones against pattern (nil means the default)
func New(pattern *regexp.Regexp) *Machine {
	if pattern == nil {
		pattern = DefaultPhonePattern
	}
	return &Machine{
		sessions: make(map[int64]session),
		phone:    pattern,
	}
}

// Start handles the start command. Any draft in progress is discarded.
func (m *Machine) Start(userID int64) Result {
	m.set(userID, session{phase: models.PhaseAwaitingQuestion})
	return Result{Prompt: PromptWelcome, Phase: models.PhaseAwaitingQuestion}
}

// NewQuestion handles the "ask a new question" button.
func (m *Machine) NewQuestion(userID int64) Result {
	m.set(userID, session{phase: models.PhaseAwaitingQuestion})
	return Result{Prompt: PromptNewQuestion, Phase: models.PhaseAwaitingQuestion}
}

// Cancel drops the user back to idle from any phase.
func (m *Machine) Cancel(userID int64) Result {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return Result{Prompt: PromptStopped, Phase: models.PhaseIdle}
}

// HandleText advances the user's dialogue with one text message.
func (m *Machine) HandleText(userID int64, userName, text string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Result{Prompt: PromptIdle, Phase: models.PhaseIdle}
	}

	switch s.phase {
	case models.PhaseAwaitingQuestion:
		question := strings.TrimSpace(text)
		if question == "" {
			return Result{Prompt: PromptEmptyQuestion, Phase: s.phase}
		}
		m.sessions[userID] = session{phase: models.PhaseAwaitingPhone, question: question}
		return Result{Prompt: PromptAskPhone, Phase: models.PhaseAwaitingPhone}

	case models.PhaseAwaitingPhone:
		if !m.phone.MatchString(text) {
			return Result{Prompt: PromptBadPhone, Phase: s.phase}
		}
		delete(m.sessions, userID)
		return Result{
			Phase: models.PhaseIdle,
			Draft: &models.Draft{
				RequesterID:   userID,
				RequesterName: userName,
				Question:      s.question,
				Phone:         text,
			},
		}
	}

	return Result{Prompt: PromptIdle, Phase: models.PhaseIdle}
}

// Resume puts a completed draft back into the phone step, used when the
// draft could not be forwarded. A dialogue started since then wins.
func (m *Machine) Resume(d models.Draft) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.sessions[d.RequesterID]; busy {
		return
	}
	m.sessions[d.RequesterID] = session{phase: models.PhaseAwaitingPhone, question: d.Question}
}

// Phase reports the user's current phase; users with no dialogue are idle.
func (m *Machine) Phase(userID int64) models.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s.phase
	}
	return models.PhaseIdle
}

// Draft returns the question held while waiting for the phone number.
func (m *Machine) Draft(userID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok || s.phase != models.PhaseAwaitingPhone {
		return "", false
	}
	return s.question, true
}

func (m *Machine) set(userID int64, s session) {
	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()
}
