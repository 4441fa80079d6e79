package cli

import (
	"fmt"

	"github.com/mgpai22/revoice/internal/language"
	"github.com/spf13/cobra"
	"golang.org/x/text/language/display"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the languages revoice can transcribe and voice",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), renderLanguages())
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func renderLanguages() string {
	supported := language.Supported()
	rows := make([][]string, 0, len(supported))
	for _, l := range supported {
		rows = append(rows, []string{l.Code, l.Name, display.Self.Name(l.Tag)})
	}
	return renderTable([]string{"Code", "Language", "Native name"}, rows, nil)
}
