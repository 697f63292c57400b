package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"chapter-quiz/internal/app"
	"chapter-quiz/internal/domain"
	"github.com/spf13/cobra"
)

// NewChaptersCmd lists chapters with completion marks and overall progress.
func NewChaptersCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chapters",
		Short: "List chapters and progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			return listChapters(cmd.Context(), rt.service, cmd.OutOrStdout())
		},
	}
}

func listChapters(ctx context.Context, service *app.QuizService, out io.Writer) error {
	statuses, err := service.Chapters(ctx)
	if err != nil {
		return err
	}
	overview, err := service.Overview(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No chapters available.")
		return nil
	}
	printChapters(out, statuses)
	fmt.Fprintf(out, "\nCompleted %d of %d chapters (%d%%)\n", overview.Completed, overview.Total, overview.Percent)
	return nil
}

// NewImportCmd bulk-imports chapters from a JSON file, or stdin with "-".
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Bulk import questions from a JSON array of chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}

			rt, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			return importChapters(cmd.Context(), rt.custom, raw, cmd.OutOrStdout())
		},
	}
}

func importChapters(ctx context.Context, custom *app.CustomStore, raw []byte, out io.Writer) error {
	added, err := custom.ImportBulk(ctx, raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Bulk questions added successfully! (%d questions)\n", added)
	return nil
}

// NewAddCmd appends a single question to a chapter.
func NewAddCmd(configPath *string) *cobra.Command {
	var (
		chapter string
		text    string
		options []string
		answer  int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one question to a chapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			q := domain.Question{Text: text, Options: options, Answer: answer - 1}
			if err := rt.custom.AddQuestion(cmd.Context(), chapter, q); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Question added to %q\n", chapter)
			return nil
		},
	}
	cmd.Flags().StringVar(&chapter, "chapter", "", "chapter name (created if missing)")
	cmd.Flags().StringVar(&text, "text", "", "question text")
	cmd.Flags().StringArrayVar(&options, "option", nil, "answer option, repeat for each")
	cmd.Flags().IntVar(&answer, "answer", 1, "number of the correct option, starting at 1")
	return cmd
}
