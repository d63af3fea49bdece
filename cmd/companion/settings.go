package main

import (
	"context"

	"github.com/aretw0/companion/internal/cli"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the saved API settings",
	Long: `Without flags, prints the saved settings with the API key redacted.
Flags change the matching setting and save it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := openRuntime(cmd.Context(), cmd, true)
		if err != nil {
			return err
		}
		defer func() { _ = rt.App.Close(context.Background()) }()

		settings := rt.App.State().Settings
		changed := false
		for flag, field := range map[string]*string{
			"api-key":     &settings.APIKey,
			"chat-model":  &settings.ChatModel,
			"image-model": &settings.ImageModel,
		} {
			if cmd.Flags().Changed(flag) {
				*field, _ = cmd.Flags().GetString(flag)
				changed = true
			}
		}

		if changed {
			if err := rt.App.Dispatch(cmd.Context(), domain.UpdateSettings{Settings: settings}); err != nil {
				return err
			}
		}

		out := rt.App.State().Settings.Redacted()
		cli.PrintSystemMessage(cmd.OutOrStdout(), "api key: %s", out.APIKey)
		cli.PrintSystemMessage(cmd.OutOrStdout(), "chat model: %s", out.ChatModel)
		cli.PrintSystemMessage(cmd.OutOrStdout(), "image model: %s", out.ImageModel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.Flags().String("api-key", "", "OpenAI API key")
	settingsCmd.Flags().String("chat-model", "", "Chat completion model")
	settingsCmd.Flags().String("image-model", "", "Image generation model")
}
