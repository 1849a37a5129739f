package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"neuroforge-backend/internal/assets"
)

var galleryDownloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Save an image to disk",
	Long: `Save an image to disk as cyberpunk-ai-<unix ms><ext>. Inline images are decoded,
remote ones fetched. --output names a file or an existing directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runGalleryDownload,
}

var (
	downloadOutput  string
	downloadTimeout time.Duration
)

func init() {
	galleryCmd.AddCommand(galleryDownloadCmd)

	galleryDownloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", ".", "Destination file or directory")
	galleryDownloadCmd.Flags().DurationVar(&downloadTimeout, "timeout", time.Minute, "Timeout for fetching remote images")
}

func runGalleryDownload(cmd *cobra.Command, args []string) error {
	store, done, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	img, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	var payload *assets.Payload
	if assets.IsDataURL(img.URL) {
		payload, err = assets.ParseDataURL(img.URL)
		if err != nil {
			return fmt.Errorf("%s: %w", img.ID, err)
		}
	} else {
		payload, err = fetchImage(cmd, img.URL)
		if err != nil {
			return err
		}
	}

	target := downloadOutput
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, assets.DownloadName(time.Now(), payload.Extension))
	}
	if err := os.WriteFile(target, payload.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "saved %s to %s (%d bytes)\n", img.ID, target, len(payload.Data))
	return nil
}

func fetchImage(cmd *cobra.Command, rawURL string) (*assets.Payload, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("image has no downloadable source: %q", rawURL)
	}

	resp, err := resty.New().
		SetTimeout(downloadTimeout).
		R().
		SetContext(cmd.Context()).
		Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch image: %s returned %d", u.Host, resp.StatusCode())
	}
	return assets.Sniff(resp.Body()), nil
}
