package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"chapter-quiz/internal/app"
	"chapter-quiz/internal/config"
	"chapter-quiz/internal/domain"
	"github.com/spf13/cobra"
)

const maxAttempts = 3

// NewPlayCmd runs an interactive quiz in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play [chapter]",
		Short: "Play a chapter quiz in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			chapter := ""
			if len(args) == 1 {
				chapter = args[0]
			}
			p := &player{
				service: rt.service,
				in:      bufio.NewReader(os.Stdin),
				out:     cmd.OutOrStdout(),
				delay:   config.Duration(rt.cfg.Quiz.FeedbackDelay, 1500*time.Millisecond),
			}
			return p.Run(cmd.Context(), chapter)
		},
	}
}

type choice int

const (
	choiceAnswer choice = iota
	choiceSkip
	choiceQuit
)

// player drives one QuizService session from line-oriented input.
type player struct {
	service *app.QuizService
	in      *bufio.Reader
	out     io.Writer
	delay   time.Duration
}

// Run plays chapterName, or asks for a chapter when it is empty.
func (p *player) Run(ctx context.Context, chapterName string) error {
	if strings.TrimSpace(chapterName) == "" {
		name, err := p.chooseChapter(ctx)
		if err != nil {
			return err
		}
		chapterName = name
	}

	snap, err := p.service.Start(ctx, chapterName)
	if err != nil {
		return err
	}
	id := snap.ID
	fmt.Fprintf(p.out, "\nChapter: %s (%d questions)\n", snap.Chapter, snap.Total)

	for snap.Question != nil {
		q := *snap.Question
		printQuestion(p.out, snap.Position+1, snap.Total, q)

		kind, index := p.readChoice(len(q.Options))
		switch kind {
		case choiceQuit:
			p.service.AbandonSession(id)
			fmt.Fprintln(p.out, "\nQuiz abandoned. Progress was not recorded.")
			return nil
		case choiceSkip:
			fmt.Fprintf(p.out, "\nSkipped. Correct answer: %s\n", q.CorrectOption())
			if snap, err = p.service.SkipSession(ctx, id); err != nil {
				return err
			}
		default:
			outcome, err := p.service.AnswerSession(ctx, id, index)
			if err != nil {
				return err
			}
			if outcome.Correct {
				fmt.Fprintln(p.out, "\nCorrect!")
			} else {
				fmt.Fprintf(p.out, "\nWrong. Correct answer: %s\n", q.CorrectOption())
			}
			if err := p.pause(ctx); err != nil {
				p.service.AbandonSession(id)
				return err
			}
			if snap, err = p.service.CurrentSession(id); err != nil {
				return err
			}
		}
	}

	summary, err := p.service.CompleteSession(ctx, id)
	if err != nil {
		return err
	}
	printSummary(p.out, summary)
	return nil
}

func (p *player) chooseChapter(ctx context.Context) (string, error) {
	statuses, err := p.service.Chapters(ctx)
	if err != nil {
		return "", err
	}
	if len(statuses) == 0 {
		return "", errors.New("no chapters available")
	}
	printChapters(p.out, statuses)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Fprint(p.out, "\nChoose a chapter (number or name): ")
		line, err := p.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" && err != nil {
			return "", fmt.Errorf("read chapter: %w", err)
		}
		if n, convErr := strconv.Atoi(line); convErr == nil {
			if n >= 1 && n <= len(statuses) {
				return statuses[n-1].Name, nil
			}
			fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(statuses))
			continue
		}
		if line != "" {
			return line, nil
		}
	}
	return "", errors.New("no chapter selected")
}

// readChoice accepts an option label, S to skip or Q to quit. Running out
// of attempts counts as a skip, end of input as quit.
func (p *player) readChoice(optionCount int) (choice, int) {
	last := optionLabel(optionCount-1, optionCount)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Fprintf(p.out, "Your answer (%s-%s, S to skip, Q to quit): ", optionLabel(0, optionCount), last)
		line, err := p.in.ReadString('\n')
		line = strings.ToUpper(strings.TrimSpace(line))
		if line == "" && err != nil {
			return choiceQuit, -1
		}
		switch line {
		case "S":
			return choiceSkip, -1
		case "Q":
			return choiceQuit, -1
		}
		if index, ok := parseOption(line, optionCount); ok {
			return choiceAnswer, index
		}
		if attempt < maxAttempts {
			fmt.Fprintf(p.out, "\nInvalid input. Please enter %s-%s.\n", optionLabel(0, optionCount), last)
		}
	}
	return choiceSkip, -1
}

// Options are lettered A-Z; questions with more options are numbered.
func optionLabel(index, optionCount int) string {
	if optionCount <= 26 {
		return string(rune('A' + index))
	}
	return strconv.Itoa(index + 1)
}

func parseOption(input string, optionCount int) (int, bool) {
	if optionCount <= 26 {
		if len(input) == 1 && input[0] >= 'A' && int(input[0]-'A') < optionCount {
			return int(input[0] - 'A'), true
		}
		return -1, false
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > optionCount {
		return -1, false
	}
	return n - 1, true
}

func (p *player) pause(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printQuestion(out io.Writer, number, total int, q domain.Question) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Question %d/%d (%d%%)\n", number, total, (number-1)*100/total)
	fmt.Fprintf(out, "%s\n\n", q.Text)
	for i, option := range q.Options {
		fmt.Fprintf(out, "%s. %s\n", optionLabel(i, len(q.Options)), option)
	}
	fmt.Fprintln(out)
}

func printSummary(out io.Writer, summary domain.Summary) {
	fmt.Fprintf(out, "\nChapter complete: %s\n", summary.Chapter)
	fmt.Fprintf(out, "Final score: %d/%d (%d%%)\n", summary.Score, summary.Total, summary.Percent())
	if len(summary.Missed) == 0 {
		fmt.Fprintln(out, "Perfect score!")
		return
	}
	fmt.Fprintln(out, "\nReview:")
	for _, q := range summary.Missed {
		fmt.Fprintf(out, "- %s\n  Correct answer: %s\n", q.Text, q.CorrectOption())
	}
}

func printChapters(out io.Writer, statuses []domain.ChapterStatus) {
	for i, status := range statuses {
		mark := " "
		if status.Completed {
			mark = "✓"
		}
		fmt.Fprintf(out, "%2d. [%s] %s (%d questions)\n", i+1, mark, status.Name, status.Questions)
	}
}
