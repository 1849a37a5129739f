package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"neuroforge-backend/internal/gallery"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect and prune the local gallery",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generated images, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runGalleryList,
}

var galleryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one image record",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryShow,
}

var galleryRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete an image",
	Long:  `Delete an image from the gallery. Without --yes the delete is only armed and nothing is removed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryRm,
}

var rmConfirm bool

func init() {
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryShowCmd)
	galleryCmd.AddCommand(galleryRmCmd)

	galleryRmCmd.Flags().BoolVarP(&rmConfirm, "yes", "y", false, "Confirm the delete")
}

func openStore(cmd *cobra.Command) (*gallery.Store, func(), error) {
	galleries, err := openGalleries(cliLogger())
	if err != nil {
		return nil, nil, err
	}
	return galleries.For(cmd.Context(), ""), galleries.Close, nil
}

func runGalleryList(cmd *cobra.Command, _ []string) error {
	store, done, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	images := store.Images()
	if len(images) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "gallery is empty")
		return nil
	}
	for _, img := range images {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-6s %-9s  %s\n",
			img.ID, img.Timestamp, img.Settings.Quality, img.Settings.Size, img.Prompt)
	}
	return nil
}

func runGalleryShow(cmd *cobra.Command, args []string) error {
	store, done, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	img, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	out, err := json.MarshalIndent(img, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runGalleryRm(cmd *cobra.Command, args []string) error {
	store, done, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	id := args[0]
	res, err := store.RequestRemove(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	if !rmConfirm {
		fmt.Fprintf(cmd.OutOrStdout(), "delete of %s armed; run again with --yes to remove it\n", id)
		return nil
	}

	if res.Status != gallery.RemoveDone {
		if _, err := store.RequestRemove(cmd.Context(), id); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
	return nil
}
