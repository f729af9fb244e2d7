package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/rehydrate/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "bundle [task]",
		Short: "Assemble a context bundle for a task",
		Long:  "Extract entities, retrieve and merge relevant chunks, attach episodic guidance, and pack it all into a token budget.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runBundle,
	}

	cmd.Flags().StringP("role", "r", "", "Agent role requesting the bundle")
	cmd.Flags().IntP("max-tokens", "m", 4000, "Max tokens in the bundle")
	cmd.Flags().IntP("base-k", "k", 5, "Base semantic retrieval width")
	cmd.Flags().Bool("no-entity-expansion", false, "Disable entity-driven context expansion (rollback override)")

	RootCmd.AddCommand(cmd)
}

func runBundle(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	baseK, _ := cmd.Flags().GetInt("base-k")
	noExpansion, _ := cmd.Flags().GetBool("no-entity-expansion")
	task := strings.Join(args, " ")

	logger := newLogger()
	defer logger.Sync()

	s, err := openStore(logger)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	eng := engine.New(s, s, engine.DefaultConfig(), logger)
	bundle, err := eng.Rehydrate(cmd.Context(), task, role, engine.Options{
		NoEntityExpansion: noExpansion,
		MaxTokens:         maxTokens,
		BaseK:             baseK,
	})
	if err != nil {
		exitErr("rehydrate", err)
	}

	b, _ := json.MarshalIndent(bundle, "", "  ")
	fmt.Println(string(b))
}
