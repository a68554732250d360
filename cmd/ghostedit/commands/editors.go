package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ghostedit/ghostedit/internal/editor"
)

var editorsFile string

var editorsCmd = &cobra.Command{
	Use:   "editors",
	Short: "List editors with built-in cursor placement support",
	Long: `List the editor programs ghostedit knows how to pass a cursor
position to, and the argument pattern used for each. Editors not listed
here still work; they just open the file without placing the cursor.`,
	RunE: runEditors,
}

func init() {
	editorsCmd.Flags().StringVar(&editorsFile, "editors-file", "", "YAML file of extra known editor cursor flags")
}

func runEditors(cmd *cobra.Command, args []string) error {
	known := editor.DefaultKnownEditors()
	if editorsFile != "" {
		var err error
		known, err = editor.LoadKnownEditors(editorsFile)
		if err != nil {
			return err
		}
	}

	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", name, strings.Join(known[name], " "))
	}
	return nil
}
