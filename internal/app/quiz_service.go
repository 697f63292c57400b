package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"chapter-quiz/internal/domain"
)

// QuizService owns the single active session: it starts sessions from the
// repository and records progress when a session completes.
type QuizService struct {
	repo       *ContentRepository
	progress   *ProgressTracker
	newSession func() *Session

	mu       sync.Mutex
	active   *Session
	recorded bool
}

func NewQuizService(repo *ContentRepository, progress *ProgressTracker) *QuizService {
	return &QuizService{repo: repo, progress: progress, newSession: NewSession}
}

// NewQuizServiceWithSessions lets tests control session construction (e.g. a seeded shuffle).
func NewQuizServiceWithSessions(repo *ContentRepository, progress *ProgressTracker, newSession func() *Session) *QuizService {
	return &QuizService{repo: repo, progress: progress, newSession: newSession}
}

// Start begins a quiz on the named chapter. A completed session is
// replaced ("play again"); an unfinished one must be abandoned first.
func (s *QuizService) Start(_ context.Context, chapterName string) (Snapshot, error) {
	chapter, ok := s.repo.FindChapterByName(chapterName)
	if !ok {
		return Snapshot{}, fmt.Errorf("%q: %w", chapterName, domain.ErrChapterNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.State() != StateComplete {
		return Snapshot{}, domain.ErrSessionActive
	}

	session := s.newSession()
	if err := session.Start(chapter); err != nil {
		return Snapshot{}, err
	}
	s.active = session
	s.recorded = false
	log.Printf("session %s started on chapter %q with %d questions", session.ID(), chapter.Name, len(chapter.Questions))
	return session.Snapshot(), nil
}

// Current returns a view of the active session.
func (s *QuizService) Current() (Snapshot, error) {
	return s.CurrentSession("")
}

// CurrentSession is Current restricted to the session with the given ID.
// An empty id matches whichever session is active.
func (s *QuizService) CurrentSession(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.sessionLocked(id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *QuizService) Answer(ctx context.Context, selected int) (domain.Outcome, error) {
	return s.AnswerSession(ctx, "", selected)
}

// AnswerSession answers on behalf of session id only; another caller's
// session is reported as ErrNoActiveSession.
func (s *QuizService) AnswerSession(_ context.Context, id string, selected int) (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.sessionLocked(id)
	if err != nil {
		return domain.Outcome{}, err
	}
	return session.Answer(selected)
}

func (s *QuizService) Skip(ctx context.Context) (Snapshot, error) {
	return s.SkipSession(ctx, "")
}

func (s *QuizService) SkipSession(_ context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.sessionLocked(id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := session.Skip(); err != nil {
		return Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// Complete finishes the active session and marks its chapter completed.
// Progress is written once per session, even if Complete is repeated.
func (s *QuizService) Complete(ctx context.Context) (domain.Summary, error) {
	return s.CompleteSession(ctx, "")
}

func (s *QuizService) CompleteSession(ctx context.Context, id string) (domain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.sessionLocked(id)
	if err != nil {
		return domain.Summary{}, err
	}
	summary, _, err := session.Complete()
	if err != nil {
		return domain.Summary{}, err
	}
	if !s.recorded {
		if err := s.progress.MarkCompleted(ctx, summary.Chapter); err != nil {
			return summary, fmt.Errorf("record progress: %w", err)
		}
		s.recorded = true
		log.Printf("session %s complete: %d/%d on %q", session.ID(), summary.Score, summary.Total, summary.Chapter)
	}
	return summary, nil
}

func (s *QuizService) sessionLocked(id string) (*Session, error) {
	if s.active == nil || (id != "" && s.active.ID() != id) {
		return nil, domain.ErrNoActiveSession
	}
	return s.active, nil
}

// Abandon discards the active session without recording progress.
func (s *QuizService) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.State() != StateComplete {
		log.Printf("session %s abandoned", s.active.ID())
	}
	s.active = nil
	s.recorded = false
}

// AbandonSession discards the active session only if its ID matches.
func (s *QuizService) AbandonSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.ID() != id {
		return false
	}
	if s.active.State() != StateComplete {
		log.Printf("session %s abandoned", id)
	}
	s.active = nil
	s.recorded = false
	return true
}

// Chapters lists every chapter with its question count and completion flag.
func (s *QuizService) Chapters(ctx context.Context) ([]domain.ChapterStatus, error) {
	record, err := s.progress.Record(ctx)
	if err != nil {
		return nil, err
	}
	chapters := s.repo.Chapters()
	out := make([]domain.ChapterStatus, 0, len(chapters))
	for _, chapter := range chapters {
		out = append(out, domain.ChapterStatus{
			Name:      chapter.Name,
			Questions: len(chapter.Questions),
			Completed: record[chapter.Key()].Completed,
		})
	}
	return out, nil
}

// Overview reports completed chapters against the live chapter count.
func (s *QuizService) Overview(ctx context.Context) (domain.ProgressOverview, error) {
	return s.progress.Overview(ctx, len(s.repo.Chapters()))
}
