package cmd

import (
	"fmt"
	"time"

	"github.com/Leantar/fswatchbench/modules/fixture"
	"github.com/spf13/cobra"
)

var shape = fixture.DefaultShape()

var generateCmd = &cobra.Command{
	Use:   "generate <directory>",
	Short: "Create a synthetic directory tree to benchmark against",
	Long: `Create a tree of small text files. Every directory holds --files files
and, down to --depth levels, --dirs subdirectories.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVar(&shape.Depth, "depth", shape.Depth, "Directory levels below the root")
	generateCmd.Flags().IntVar(&shape.Dirs, "dirs", shape.Dirs, "Subdirectories per directory")
	generateCmd.Flags().IntVar(&shape.Files, "files", shape.Files, "Files per directory")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := setupLogging("info"); err != nil {
		return err
	}

	start := time.Now()
	n, err := fixture.Generate(args[0], shape)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d files in %s in %v\n", n, args[0], time.Since(start))

	return nil
}
