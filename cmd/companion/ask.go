package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/companion/internal/cli"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [query...]",
	Short: "Ask something and print the answer",
	Long: `Appends the query to the current conversation and waits for the answer.
With --image the answer is a generated image, written to --out when given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		rt, _, err := openRuntime(sc, cmd, true)
		if err != nil {
			return err
		}
		defer func() { _ = rt.App.Close(context.Background()) }()

		kind := domain.EffectText
		if image, _ := cmd.Flags().GetBool("image"); image {
			kind = domain.EffectImage
		}

		sub, err := rt.App.Submit(sc, kind, strings.Join(args, " "))
		if err != nil {
			return err
		}

		var result error
		select {
		case res := <-sub.Done:
			result = res.Err
		case <-sc.Done():
			// The executor still finalizes the entry; Close waits for it.
			return fmt.Errorf("interrupted: %w", sc.Err())
		}

		entry, ok := rt.App.State().FindEntry(sub.EntryID)
		if !ok {
			return errors.New("the entry disappeared before it was answered")
		}

		r := cli.NewRenderer(cmd.OutOrStdout())
		if err := r.Markdown(cli.EntryMarkdown(entry)); err != nil {
			return err
		}

		if out, _ := cmd.Flags().GetString("out"); out != "" && entry.Response.Image != nil {
			path, err := writeImage(out, sub.EntryID, *entry.Response.Image)
			if err != nil {
				return err
			}
			cli.PrintSystemMessage(cmd.ErrOrStderr(), "Image written to %s", path)
		}
		return result
	},
}

// writeImage saves img under out. A directory gets a file named after the entry.
func writeImage(out, entryID string, img domain.Image) (string, error) {
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, entryID+mimetype.Detect(img.Data).Extension())
	}
	if err := os.WriteFile(out, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolP("image", "i", false, "Generate an image instead of text")
	askCmd.Flags().StringP("out", "o", "", "File or directory the generated image is written to")
}
