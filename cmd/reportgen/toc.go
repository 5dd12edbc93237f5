package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"reportgen/internal/pipeline"
	"reportgen/internal/session"
	"reportgen/internal/toc"

	"github.com/spf13/cobra"
)

var tocCmd = &cobra.Command{
	Use:   "toc",
	Short: "Edit the table of contents",
}

func init() {
	tocAddCmd.Flags().StringP("parent", "p", "", "Parent section number (levels 2 and 3)")
	tocAddCmd.Flags().StringP("title", "t", "", "Section title")

	tocCmd.AddCommand(tocAddCmd, tocDeleteCmd, tocTitleCmd, tocRenumberCmd, tocListCmd, tocImportCmd, tocExportCmd)
}

var tocAddCmd = &cobra.Command{
	Use:   "add <level>",
	Short: "Append a section at level 1, 2 or 3",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid level %q", args[0])
		}
		parent, _ := cmd.Flags().GetString("parent")
		title, _ := cmd.Flags().GetString("title")

		return withSession(cmd.Context(), func(_ *pipeline.Service, sess *session.Session) error {
			node, ok := sess.TOC.Add(parent, level)
			if !ok {
				return fmt.Errorf("cannot add a level %d section under %q", level, parent)
			}
			if title != "" {
				sess.TOC.SetTitle(len(sess.TOC)-1, title)
			}
			fmt.Printf("➕ Added %s\n", node.Number)
			printTOC(sess.TOC)
			return nil
		})
	},
}

var tocDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete a section and its descendants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(_ *pipeline.Service, sess *session.Session) error {
			index, err := parseIndex(args[0], sess.TOC)
			if err != nil {
				return err
			}
			removed := sess.TOC[index].Number
			sess.TOC = sess.TOC.Delete(index)
			fmt.Printf("🗑️  Deleted %s\n", removed)
			printTOC(sess.TOC)
			return nil
		})
	},
}

var tocTitleCmd = &cobra.Command{
	Use:   "title <index> <title>",
	Short: "Set a section title",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(_ *pipeline.Service, sess *session.Session) error {
			index, err := parseIndex(args[0], sess.TOC)
			if err != nil {
				return err
			}
			sess.TOC.SetTitle(index, strings.Join(args[1:], " "))
			printTOC(sess.TOC)
			return nil
		})
	},
}

var tocRenumberCmd = &cobra.Command{
	Use:   "renumber",
	Short: "Sort sections hierarchically and compact their numbers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(_ *pipeline.Service, sess *session.Session) error {
			sess.TOC = toc.RenumberByHierarchy(sess.TOC)
			printTOC(sess.TOC)
			return nil
		})
	},
}

var tocListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the table of contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(_ *pipeline.Service, sess *session.Session) error {
			printTOC(sess.TOC)
			elig := sess.Eligibility()
			if elig.HasNextYearSection {
				fmt.Printf("📅 Next-year sections: %s\n", strings.Join(elig.MatchingSectionTitles, ", "))
			}
			return nil
		})
	},
}

var tocImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the table of contents from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := toc.LoadFile(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), func(_ *pipeline.Service, sess *session.Session) error {
			sess.TOC = t
			fmt.Printf("📥 Imported %d section(s).\n", len(t))
			printTOC(sess.TOC)
			return nil
		})
	},
}

var tocExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the table of contents as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(_ *pipeline.Service, sess *session.Session) error {
			raw, err := toc.Marshal(sess.TOC)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], raw, 0o644); err != nil {
				return err
			}
			fmt.Printf("💾 Table of contents written to %s\n", args[0])
			return nil
		})
	},
}

func parseIndex(raw string, t toc.TOC) (int, error) {
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 || index >= len(t) {
		return 0, fmt.Errorf("no section at index %q", raw)
	}
	return index, nil
}

func printTOC(t toc.TOC) {
	if len(t) == 0 {
		fmt.Println("(empty)")
		return
	}
	for i, n := range t {
		title := n.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%3d  %s%s. %s\n", i, strings.Repeat("  ", n.Level-1), n.Number, title)
	}
}
