package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/appforge/forge/internal/api/v1/handlers"
)

// GetGenerateCmd returns the generate command
func GetGenerateCmd() *cobra.Command {
	var (
		threshold   int
		attachments []string
	)

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Start an app-generation job from a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := apiClient.Generate(cmd.Context(), handlers.GenerateRequest{
				Prompt:      strings.Join(args, " "),
				Threshold:   threshold,
				Attachments: attachments,
			})
			if err != nil {
				return fmt.Errorf("failed to start job: %w", err)
			}
			fmt.Printf("job started: %s\n", jobID)
			return nil
		},
	}

	cmd.Flags().IntVarP(&threshold, "threshold", "t", 0, "Review approval threshold (0-100, server default when omitted)")
	cmd.Flags().StringSliceVarP(&attachments, "attachment", "a", nil, "Attachment reference (repeatable)")
	return cmd
}
