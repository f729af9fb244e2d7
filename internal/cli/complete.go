package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/rehydrate/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "complete [task]",
		Short: "Record a task-completion reflection",
		Long:  "Store what worked and what to avoid for a finished task, so future similar tasks get episodic guidance. Invoked by the surrounding workflow, never by the engine.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runComplete,
	}

	cmd.Flags().StringSliceP("worked", "w", nil, "What worked (repeatable)")
	cmd.Flags().StringSliceP("avoid", "a", nil, "What to avoid (repeatable)")
	cmd.Flags().String("agent", "", "Agent that performed the task")
	cmd.Flags().String("task-type", "", "Task type")

	RootCmd.AddCommand(cmd)
}

func runComplete(cmd *cobra.Command, args []string) {
	worked, _ := cmd.Flags().GetStringSlice("worked")
	avoid, _ := cmd.Flags().GetStringSlice("avoid")
	agent, _ := cmd.Flags().GetString("agent")
	taskType, _ := cmd.Flags().GetString("task-type")
	task := strings.Join(args, " ")

	logger := newLogger()
	defer logger.Sync()

	s, err := openStore(logger)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	r, err := s.SaveReflection(cmd.Context(), store.SaveReflectionParams{
		TaskDescription: task,
		WhatWorked:      worked,
		WhatToAvoid:     avoid,
		Agent:           agent,
		TaskType:        taskType,
	})
	if err != nil {
		exitErr("save reflection", err)
	}

	b, _ := json.MarshalIndent(r, "", "  ")
	fmt.Println(string(b))
}
