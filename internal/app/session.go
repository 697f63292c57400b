package app

import (
	"fmt"
	"math/rand"
	"time"

	"chapter-quiz/internal/domain"
	"github.com/google/uuid"
)

// State is the lifecycle phase of a Session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session runs one chapter quiz: Idle -> Active -> Complete.
// It is not safe for concurrent use; QuizService serializes access.
type Session struct {
	id      string
	rnd     *rand.Rand
	state   State
	chapter string

	queue    []domain.Question
	position int
	score    int
	missed   []domain.Question
	summary  domain.Summary
}

func NewSession() *Session {
	return NewSessionWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSessionWithRand is used by tests for a reproducible shuffle.
func NewSessionWithRand(rnd *rand.Rand) *Session {
	return &Session{id: uuid.NewString(), rnd: rnd, state: StateIdle}
}

// Start builds a shuffled, independent queue from chapter.
func (s *Session) Start(chapter domain.Chapter) error {
	if s.state != StateIdle {
		return fmt.Errorf("start in %s state: %w", s.state, domain.ErrInvalidState)
	}
	if len(chapter.Questions) == 0 {
		return domain.ErrEmptyChapter
	}

	queue := domain.CloneQuestions(chapter.Questions)
	// rand.Shuffle is Fisher-Yates: every permutation is equally likely.
	s.rnd.Shuffle(len(queue), func(i, j int) {
		queue[i], queue[j] = queue[j], queue[i]
	})

	s.chapter = chapter.Name
	s.queue = queue
	s.position = 0
	s.score = 0
	s.missed = nil
	s.state = StateActive
	return nil
}

// CurrentQuestion returns the question at the cursor, or false once the
// queue is exhausted.
func (s *Session) CurrentQuestion() (domain.Question, bool) {
	if s.state != StateActive || s.position >= len(s.queue) {
		return domain.Question{}, false
	}
	return s.queue[s.position].Clone(), true
}

// Answer records the outcome for the current question and advances the
// cursor once. Any index other than the correct one, including one outside
// the options, counts as a wrong answer.
func (s *Session) Answer(selected int) (domain.Outcome, error) {
	q, ok := s.CurrentQuestion()
	if !ok {
		return domain.Outcome{}, fmt.Errorf("answer with no current question: %w", domain.ErrInvalidState)
	}

	correct := selected == q.Answer
	if correct {
		s.score++
	} else {
		s.missed = append(s.missed, q)
	}
	s.position++

	return domain.Outcome{
		Correct:      correct,
		CorrectIndex: q.Answer,
		Score:        s.score,
		Position:     s.position,
		Finished:     s.IsFinished(),
	}, nil
}

// Skip counts the current question as missed and advances.
func (s *Session) Skip() error {
	q, ok := s.CurrentQuestion()
	if !ok {
		return fmt.Errorf("skip with no current question: %w", domain.ErrInvalidState)
	}
	s.missed = append(s.missed, q)
	s.position++
	return nil
}

func (s *Session) IsFinished() bool {
	return s.state != StateIdle && s.position >= len(s.queue)
}

// Complete freezes the summary. first reports whether this call performed
// the transition; later calls return the same summary with first=false.
func (s *Session) Complete() (summary domain.Summary, first bool, err error) {
	switch {
	case s.state == StateComplete:
		return s.frozenSummary(), false, nil
	case s.state != StateActive || !s.IsFinished():
		return domain.Summary{}, false, fmt.Errorf("complete before finish: %w", domain.ErrInvalidState)
	}

	s.summary = domain.Summary{
		Chapter: s.chapter,
		Score:   s.score,
		Total:   len(s.queue),
		Missed:  domain.CloneQuestions(s.missed),
	}
	if s.summary.Missed == nil {
		s.summary.Missed = []domain.Question{}
	}
	s.state = StateComplete
	return s.frozenSummary(), true, nil
}

func (s *Session) frozenSummary() domain.Summary {
	out := s.summary
	out.Missed = domain.CloneQuestions(s.summary.Missed)
	return out
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return s.state }

// Chapter returns the display name of the originating chapter.
func (s *Session) Chapter() string { return s.chapter }

func (s *Session) Score() int { return s.score }

// Missed returns the questions answered wrong or skipped so far.
func (s *Session) Missed() []domain.Question {
	return domain.CloneQuestions(s.missed)
}

// Progress returns the cursor and the queue length.
func (s *Session) Progress() (position, total int) {
	return s.position, len(s.queue)
}

// ProgressPercent is the share of the queue already answered or skipped.
func (s *Session) ProgressPercent() int {
	if len(s.queue) == 0 {
		return 0
	}
	return s.position * 100 / len(s.queue)
}

// Snapshot is a read-only view of a session for presentation layers.
type Snapshot struct {
	ID       string           `json:"id"`
	Chapter  string           `json:"chapter"`
	State    string           `json:"state"`
	Position int              `json:"position"`
	Total    int              `json:"total"`
	Score    int              `json:"score"`
	Progress int              `json:"progress"`
	Question *domain.Question `json:"question,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:       s.id,
		Chapter:  s.chapter,
		State:    s.state.String(),
		Position: s.position,
		Total:    len(s.queue),
		Score:    s.score,
		Progress: s.ProgressPercent(),
	}
	if q, ok := s.CurrentQuestion(); ok {
		snap.Question = &q
	}
	return snap
}
