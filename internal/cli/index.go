package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/rehydrate/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "index [file]",
		Short: "Index a document into the chunk store",
		Long:  "Chunk, embed, and index a document. Reads from the file argument, or stdin when the argument is '-' or omitted.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runIndex,
	}

	cmd.Flags().StringP("source", "s", "", "Source identifier (defaults to the file path)")
	cmd.Flags().StringSliceP("tags", "t", nil, "Tags for the document")

	RootCmd.AddCommand(cmd)
}

func runIndex(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")
	tags, _ := cmd.Flags().GetStringSlice("tags")

	var content []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if source == "" {
			source = "stdin"
		}
	} else {
		content, err = os.ReadFile(args[0])
		if source == "" {
			source = args[0]
		}
	}
	if err != nil {
		exitErr("read content", err)
	}

	logger := newLogger()
	defer logger.Sync()

	s, err := openStore(logger)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	doc, err := s.PutDocument(cmd.Context(), store.PutDocumentParams{
		Source:  source,
		Content: string(content),
		Tags:    tags,
	})
	if err != nil {
		exitErr("index", err)
	}

	b, _ := json.MarshalIndent(doc, "", "  ")
	fmt.Println(string(b))
}
