package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shouni/go-book-spider/pkg/spider"
)

// printSpiders は組み込みスパイダーを名前順に一覧表示します。
func printSpiders(w io.Writer) error {
	for _, name := range spider.Names() {
		cfg, err := spider.Lookup(name)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%-8s %-7s %s", cfg.Name, cfg.Mode, cfg.StartURL)
		if cfg.OutputFile != "" {
			line += " -> " + cfg.OutputFile
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "利用可能なスパイダーを一覧表示します",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSpiders(cmd.OutOrStdout())
	},
}
