package domain

import (
	"strings"
	"time"
)

// NormalizeName maps a chapter name to its identity key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Question models an MCQ question; Answer indexes into Options.
type Question struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// Clone returns a copy that shares no memory with q.
func (q Question) Clone() Question {
	out := q
	if q.Options != nil {
		out.Options = make([]string, len(q.Options))
		copy(out.Options, q.Options)
	}
	return out
}

// CorrectOption returns the text of the correct option, or "" when Answer is out of range.
func (q Question) CorrectOption() string {
	if q.Answer < 0 || q.Answer >= len(q.Options) {
		return ""
	}
	return q.Options[q.Answer]
}

// Validate requires non-empty text, at least two options and an answer
// index inside the options.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if len(q.Options) < 2 {
		return &ValidationError{Field: "options", Reason: "need at least 2 options"}
	}
	if q.Answer < 0 || q.Answer >= len(q.Options) {
		return &ValidationError{Field: "answer", Reason: "index out of range"}
	}
	return nil
}

// Chapter is a named collection of questions.
type Chapter struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Key returns the normalized identity of the chapter.
func (c Chapter) Key() string {
	return NormalizeName(c.Name)
}

// Clone deep-copies the chapter and its questions.
func (c Chapter) Clone() Chapter {
	return Chapter{Name: c.Name, Questions: CloneQuestions(c.Questions)}
}

// CloneQuestions deep-copies a question slice.
func CloneQuestions(questions []Question) []Question {
	if questions == nil {
		return nil
	}
	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = q.Clone()
	}
	return out
}

// Outcome is the immediate result of answering the current question.
type Outcome struct {
	Correct      bool `json:"correct"`
	CorrectIndex int  `json:"correctIndex"`
	Score        int  `json:"score"`
	Position     int  `json:"position"`
	Finished     bool `json:"finished"`
}

// Summary is the frozen result of a completed session.
type Summary struct {
	Chapter string     `json:"chapter"`
	Score   int        `json:"score"`
	Total   int        `json:"total"`
	Missed  []Question `json:"missed"`
}

// Percent returns the rounded score percentage.
func (s Summary) Percent() int {
	return percent(s.Score, s.Total)
}

// ProgressEntry records completion of a single chapter.
type ProgressEntry struct {
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completedAt"`
}

// ProgressOverview summarizes completion across all known chapters.
type ProgressOverview struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// NewProgressOverview builds an overview; Percent is 0 when total is 0.
func NewProgressOverview(completed, total int) ProgressOverview {
	return ProgressOverview{Completed: completed, Total: total, Percent: percent(completed, total)}
}

// ChapterStatus is a listing row for chapter selection.
type ChapterStatus struct {
	Name      string `json:"name"`
	Questions int    `json:"questions"`
	Completed bool   `json:"completed"`
}

func percent(n, total int) int {
	if total <= 0 {
		return 0
	}
	return (n*100 + total/2) / total
}
