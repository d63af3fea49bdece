package main

import (
	"context"
	"fmt"

	"github.com/aretw0/companion/internal/cli"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := openRuntime(cmd.Context(), cmd, true)
		if err != nil {
			return err
		}
		defer func() { _ = rt.App.Close(context.Background()) }()

		return cli.NewRenderer(cmd.OutOrStdout()).Markdown(cli.HistoryMarkdown(rt.App.State()))
	},
}

var showCmd = &cobra.Command{
	Use:   "show [conversation-id]",
	Short: "Print a conversation (the latest one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := openRuntime(cmd.Context(), cmd, true)
		if err != nil {
			return err
		}
		defer func() { _ = rt.App.Close(context.Background()) }()

		state := rt.App.State()
		i := len(state.Conversations) - 1
		if len(args) == 1 {
			if i = state.IndexOfConversation(args[0]); i < 0 {
				return fmt.Errorf("no conversation with id %q", args[0])
			}
		}
		return cli.NewRenderer(cmd.OutOrStdout()).Markdown(cli.ConversationMarkdown(state.Conversations[i]))
	},
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := openRuntime(cmd.Context(), cmd, true)
		if err != nil {
			return err
		}
		defer func() { _ = rt.App.Close(context.Background()) }()

		if err := rt.App.Dispatch(cmd.Context(), domain.CreateConversation{}); err != nil {
			return err
		}
		state := rt.App.State()
		cli.PrintSystemMessage(cmd.OutOrStdout(), "Started conversation %s", state.CurrentConversation().ID)
		return nil
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite <entry-or-conversation-id>",
	Short: "Toggle the favorite flag of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := openRuntime(cmd.Context(), cmd, true)
		if err != nil {
			return err
		}
		defer func() { _ = rt.App.Close(context.Background()) }()

		if err := rt.App.Dispatch(cmd.Context(), domain.ToggleFavorite{ID: args[0]}); err != nil {
			return err
		}
		state := rt.App.State()
		i := state.ResolveConversation(args[0])
		if i < 0 {
			return fmt.Errorf("no conversation or entry with id %q", args[0])
		}
		c := state.Conversations[i]
		cli.PrintSystemMessage(cmd.OutOrStdout(), "Conversation %s favorite: %t", c.ID, c.Favorite)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd, showCmd, newCmd, favoriteCmd)
}
