// Command questsync manages the on-device quest replica: it lists quests
// through the hybrid local/cloud engine, follows the realtime change feed,
// and verifies that a quest is fully uploaded before offloading it from the
// device.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/questsync/internal/common"
	"github.com/dmitrijs2005/questsync/internal/config"
	"github.com/dmitrijs2005/questsync/internal/offload"
	"github.com/dmitrijs2005/questsync/internal/realtime"
	"github.com/dmitrijs2005/questsync/internal/record"
)

var app *App

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "questsync",
	Short: "questsync keeps a local quest replica in sync with the cloud",
	Long: `questsync maintains an on-device replica of quest data. Reads are
answered locally first and reconciled with the cloud when reachable; the
offload commands prove a quest is fully uploaded before removing it from
the device.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		a, err := NewApp(cmd.Context(), config.LoadConfig())
		if err != nil {
			return err
		}
		app = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app != nil {
			return app.Close()
		}
		return nil
	},
}

func init() {
	questsCmd.Flags().BoolVar(&questsPaged, "paged", false, "fetch page by page instead of one merged list")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(questsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(offloadCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("questsync v0.1.0")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity and the unsynced backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mode := "offline"
		if app.Online() {
			mode = "online"
		}
		mutations, uploads, err := app.PendingCounts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("mode:              %s\n", mode)
		fmt.Printf("pending mutations: %d\n", mutations)
		fmt.Printf("pending uploads:   %d\n", uploads)
		return nil
	},
}

var questsPaged bool

var questsCmd = &cobra.Command{
	Use:   "quests",
	Short: "List quests, merging the replica with the cloud when reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		if questsPaged {
			pages, err := app.QuestPages(cmd.Context())
			if err != nil {
				return err
			}
			for i, page := range pages {
				fmt.Printf("-- page %d (%d of %d total)\n", i+1, len(page.Data), page.TotalCount)
				for _, row := range page.Data {
					printQuestRow(row)
				}
			}
			return nil
		}

		rows, err := app.QuestRows(cmd.Context())
		if err != nil {
			return err
		}
		for _, row := range rows {
			printQuestRow(row)
		}
		fmt.Printf("%d quests\n", len(rows))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the realtime change feed and keep the quest list current",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go app.StartOnlineStatusWatcher(ctx, app.cfg.OnlineCheckInterval)

		err := app.WatchQuests(ctx, func(ev realtime.Event[record.Map], rows int) {
			id := ev.New.RecordID()
			if ev.Type == realtime.EventDelete {
				id = ev.Old.RecordID()
			}
			fmt.Printf("%s %s (%d quests)\n", ev.Type, id, rows)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <quest-id>",
	Short: "Audit that a quest is fully present in the cloud",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := app.verifier.Run(ctx, args[0])
		if s != nil {
			printSession(s)
		}
		return err
	},
}

var offloadCmd = &cobra.Command{
	Use:   "offload <quest-id>",
	Short: "Verify a quest and remove its local copy once proven in the cloud",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := app.verifier.Offload(ctx, args[0], app.store)
		if s != nil {
			printSession(s)
		}
		if err != nil {
			if errors.Is(err, common.ErrorVerificationIncomplete) {
				return fmt.Errorf("quest %s is not fully uploaded, keeping local copy", args[0])
			}
			return err
		}
		fmt.Printf("quest %s offloaded, reclaimed ~%d bytes\n", args[0], s.EstimatedStorageBytes())
		return nil
	},
}

func printQuestRow(row record.Map) {
	name, _ := row["name"].(string)
	fmt.Printf("%-36s  %s\n", row.RecordID(), name)
}

func printSession(s *offload.Session) {
	fmt.Printf("quest:    %s\n", s.QuestID())
	fmt.Printf("state:    %s\n", s.State())
	if s.HasPendingUploads() {
		fmt.Printf("pending:  %d unsynced changes\n", s.PendingUploadCount())
		return
	}

	statuses := s.Statuses()
	for _, cat := range offload.Categories {
		st := statuses[cat]
		mark := "ok"
		if st.HasError {
			mark = "FAILED"
		}
		fmt.Printf("  %-20s %3d/%-3d %s\n", cat, st.Verified, st.Count, mark)
	}
	fmt.Printf("estimated storage: %d bytes\n", s.EstimatedStorageBytes())
}
