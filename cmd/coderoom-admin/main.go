package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/nhoover/coderoom/config"
	"github.com/nhoover/coderoom/globals"
	"github.com/nhoover/coderoom/persistence"
	"github.com/spf13/cobra"
)

// A very simple CLI tool for inspecting and restoring coderoom documents. It
// talks to the store directly, so restores issued here are not pushed to
// connected clients.

var (
	configPath string
	store      persistence.Store
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "coderoom-admin",
		Short:        "administration tool for coderoom rooms",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flagSet := config.GetFlagSet()
			globalConfig, err := config.ReadConfiguration(configPath, flagSet)
			if err != nil {
				return err
			}
			if globalConfig.LogLevel != "" {
				globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
			}
			store, err = persistence.NewBackend(globalConfig)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("no persistence configured")
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if store != nil {
				store.Close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file or directory")

	roomsCmd := &cobra.Command{
		Use:   "rooms",
		Short: "list all rooms in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := store.Rooms()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <room>",
		Short: "print the current content of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := store.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Println(doc.Content)
			return nil
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history <room>",
		Short: "list the retained versions of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := store.ListVersions(args[0])
			if err != nil {
				return err
			}
			for _, v := range versions {
				fmt.Printf("%3d  %s  %d chars\n", v.Index, v.CreatedAt.Format("2006-01-02 15:04:05"), v.Size)
			}
			return nil
		},
	}

	restoreCmd := &cobra.Command{
		Use:   "restore <room> <index>",
		Short: "restore a room to a retained version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			content, err := store.Restore(args[0], index)
			if err != nil {
				return err
			}
			fmt.Printf("restored version %d (%d chars)\n", index, len(content))
			return nil
		},
	}

	rootCmd.AddCommand(roomsCmd, showCmd, historyCmd, restoreCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
