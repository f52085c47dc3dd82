package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/config"
)

// NewEraseSubjectsCmd deletes subjects and their attempt history as part of
// account removal.
func NewEraseSubjectsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "erase-subjects SUBJECT_ID...",
		Short: "Delete subjects with all of their attempts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			b, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.close()
			eraser := b.subjectEraser()
			if eraser == nil {
				return fmt.Errorf("no durable subject store configured")
			}
			return eraseSubjects(cmd.Context(), eraser, args)
		},
	}
}

func eraseSubjects(ctx context.Context, eraser app.SubjectEraser, subjectIDs []string) error {
	for _, id := range subjectIDs {
		if err := eraser.DeleteSubject(ctx, id); err != nil {
			return fmt.Errorf("erase subject %s: %w", id, err)
		}
	}
	log.Printf("erased %d subjects", len(subjectIDs))
	return nil
}
