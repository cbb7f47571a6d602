package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"cdmkn-go/internal/app"
	"cdmkn-go/internal/cdmkn"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history FILE",
	Short: "List the recorded changes of a file, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		pageSize, _ := cmd.Flags().GetInt("page")

		return withApp("history", func(a *app.CdmknApp) error {
			entries, err := a.FileHistory(args[0], limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No recorded changes.")
				return nil
			}
			return page(os.Stdout, len(entries), pageSize, func(w io.Writer, i int) {
				e := entries[i]
				if e.Err != nil {
					fmt.Fprintf(w, "#%-6d  %-14s  unreadable: %v\n", e.ChangeID, humanize.Time(e.CreatedAt), e.Err)
					return
				}
				fmt.Fprintf(w, "#%-6d  %-14s  event %-5d  +%d -%d\n",
					e.ChangeID, humanize.Time(e.CreatedAt), e.EventID, e.Added, e.Removed)
			})
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show FILE CHANGE_ID",
	Short: "Print a file as it was at a change",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		changeID, err := parseChangeID(args[1])
		if err != nil {
			return err
		}
		previous, _ := cmd.Flags().GetBool("previous")
		snippets, _ := cmd.Flags().GetBool("snippets")
		unified, _ := cmd.Flags().GetBool("diff")

		return withApp("show", func(a *app.CdmknApp) error {
			v, err := a.Version(args[0], changeID)
			if err != nil {
				return err
			}
			switch {
			case snippets:
				for _, s := range v.Snippets() {
					fmt.Printf("[%d] %s\n%s", s.Index, s.Tag, s.Content)
					if !strings.HasSuffix(s.Content, "\n") {
						fmt.Println()
					}
				}
			case unified:
				for _, e := range cdmkn.RenderUnified(v.Elements) {
					printPrefixed(e)
				}
			case previous:
				fmt.Print(v.Previous())
			default:
				fmt.Print(v.Current())
			}
			return nil
		})
	},
}

// printPrefixed prints every line of an element behind a diff marker.
func printPrefixed(e cdmkn.ChangeElement) {
	marker := " "
	switch e.Tag {
	case cdmkn.TagAdd:
		marker = "+"
	case cdmkn.TagRemove:
		marker = "-"
	}
	for _, line := range strings.SplitAfter(e.Content, "\n") {
		if line == "" {
			continue
		}
		fmt.Print(marker, line)
		if !strings.HasSuffix(line, "\n") {
			fmt.Println()
		}
	}
}

var restoreCmd = &cobra.Command{
	Use:   "restore FILE CHANGE_ID",
	Short: "Overwrite a file with its content at a change",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		changeID, err := parseChangeID(args[1])
		if err != nil {
			return err
		}
		previous, _ := cmd.Flags().GetBool("previous")

		return withApp("restore", func(a *app.CdmknApp) error {
			if err := a.Restore(args[0], changeID, previous); err != nil {
				return err
			}
			fmt.Printf("Restored %s to change #%d\n", args[0], changeID)
			return nil
		})
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events [REPOSITORY]",
	Short: "Show the event chain of a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp("events", func(a *app.CdmknApp) error {
			events, err := a.EventLog(target, limit)
			for _, e := range events {
				parent := "-"
				if e.ParentEventID.Valid {
					parent = fmt.Sprintf("%d", e.ParentEventID.Int64)
				}
				fmt.Printf("event %-6d  parent %-6s  %s\n", e.ID, parent, humanize.Time(e.CreatedAt))
			}
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No events recorded.")
			}
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 200, "Maximum number of changes to load")
	historyCmd.Flags().Int("page", 20, "Changes per page")
	rootCmd.AddCommand(historyCmd)

	showCmd.Flags().Bool("previous", false, "Print the content from before the change")
	showCmd.Flags().Bool("snippets", false, "Print only the added and removed runs, numbered")
	showCmd.Flags().Bool("diff", false, "Print the change as a line diff")
	rootCmd.AddCommand(showCmd)

	restoreCmd.Flags().Bool("previous", false, "Restore the content from before the change")
	rootCmd.AddCommand(restoreCmd)

	eventsCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
	rootCmd.AddCommand(eventsCmd)
}
