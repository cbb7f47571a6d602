package main

import (
	"context"
	"fmt"

	"cdmkn-go/internal/app"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload history recorded since the last push",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("push", func(a *app.CdmknApp) error {
			result, err := a.Push(context.Background())
			if err != nil {
				return err
			}
			if result.Changes == 0 {
				fmt.Println("Nothing to push.")
				return nil
			}
			var size int64
			for _, b := range result.Bundles {
				size += b.Size
			}
			fmt.Printf("Pushed %d change(s) in %d bundle(s), %s\n",
				result.Changes, len(result.Bundles), humanize.Bytes(uint64(size)))
			return nil
		})
	},
}

var bundlesCmd = &cobra.Command{
	Use:   "bundles [CHECKSUM]",
	Short: "List pushed bundles, or show the changes of one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("bundles", func(a *app.CdmknApp) error {
			ctx := context.Background()
			if len(args) == 0 {
				manifest, err := a.Bundles(ctx)
				if err != nil {
					return err
				}
				if len(manifest.Bundles) == 0 {
					fmt.Println("No bundles pushed.")
					return nil
				}
				for _, b := range manifest.Bundles {
					lock := " "
					if b.Encrypted {
						lock = "E"
					}
					fmt.Printf("%s %s  %4d change(s)  %8s  pushed %s\n",
						lock, b.Checksum[:12], b.Changes, humanize.Bytes(uint64(b.Size)), humanize.Time(b.PushedAt))
				}
				return nil
			}

			passphrase := ""
			manifest, err := a.Bundles(ctx)
			if err != nil {
				return err
			}
			if entry := manifest.Find(args[0]); entry != nil && entry.Encrypted {
				if passphrase, err = readPassphrase("Passphrase: "); err != nil {
					return err
				}
			}
			bundle, err := a.FetchBundle(ctx, args[0], passphrase)
			if err != nil {
				return err
			}
			for _, c := range bundle.Changes {
				fmt.Printf("#%-6d  %s  %s\n", c.ID, c.CreatedAt.Format("2006-01-02 15:04:05"), c.CanonicalPath)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(bundlesCmd)
}
