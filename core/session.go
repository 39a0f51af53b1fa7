package orchestration

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/dringai/voiceagent/core/llms"
)

type TurnStatus string

const (
	TurnCompleted   TurnStatus = "completed"
	TurnInterrupted TurnStatus = "interrupted"
	TurnErrored     TurnStatus = "error"
)

// Turn is one user/assistant exchange.
type Turn struct {
	ID            int
	StartedAt     time.Time
	EndedAt       time.Time
	UserText      string
	AssistantText string
	Status        TurnStatus
}

// Session holds one conversation's identity and its completed turns.
// Turn ids are handed out strictly in order with no gaps; a turn id is
// only assigned once transcription has produced usable text.
type Session struct {
	ID        string
	StartedAt time.Time

	mu       sync.Mutex
	turns    []Turn
	nextTurn int
}

func NewSession(startedAt time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
		nextTurn:  1,
	}
}

// BeginTurn allocates the next turn id.
func (s *Session) BeginTurn(startedAt time.Time, userText string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := Turn{
		ID:        s.nextTurn,
		StartedAt: startedAt,
		UserText:  userText,
	}
	s.nextTurn++
	return turn
}

// Complete records a finished turn. Turns arrive in id order because the
// orchestrator processes them strictly sequentially.
func (s *Session) Complete(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

// History returns the dialogue context for the next turn: every completed
// or interrupted exchange, in order. Errored turns carry no assistant
// text worth replaying.
func (s *Session) History() []llms.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]llms.Exchange, 0, len(s.turns))
	for _, turn := range s.turns {
		if turn.Status == TurnErrored {
			continue
		}
		history = append(history, llms.Exchange{
			UserText:      turn.UserText,
			AssistantText: turn.AssistantText,
		})
	}
	return history
}

// Turns returns a deep copy of the completed turns.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snapshot []Turn
	_ = copier.CopyWithOption(&snapshot, &s.turns, copier.Option{DeepCopy: true})
	return snapshot
}
