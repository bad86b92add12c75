package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appforge/forge/internal/types"
)

// GetWatchCmd returns the watch command
func GetWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [job-id]",
		Short: "Follow a job's status stream until it reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := apiClient.WatchJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to watch job: %w", err)
			}

			for msg := range updates {
				if msg.Type != types.MessageStatusUpdate {
					continue
				}
				snap, err := decodeSnapshot(msg.Data)
				if err != nil {
					continue
				}
				line := fmt.Sprintf("%s %s", snap.Status, snap.Step)
				if snap.Error != nil {
					line += " (" + *snap.Error + ")"
				}
				fmt.Println(line)
				if snap.Status == "complete" || snap.Status == "failed" {
					return nil
				}
			}
			return nil
		},
	}
}

// decodeSnapshot recovers the typed snapshot from the generic stream payload
func decodeSnapshot(data interface{}) (types.JobStatusSnapshot, error) {
	var snap types.JobStatusSnapshot
	raw, err := json.Marshal(data)
	if err != nil {
		return snap, err
	}
	err = json.Unmarshal(raw, &snap)
	return snap, err
}
