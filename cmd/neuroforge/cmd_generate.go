package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"neuroforge-backend/internal/assets"
	"neuroforge-backend/internal/imagegen"
	"neuroforge-backend/internal/models"
	"neuroforge-backend/internal/relay"
	"neuroforge-backend/internal/services"
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt...>",
	Short: "Generate an image and add it to the gallery",
	Long:  `Send the prompt through the relay to the selected provider and append the result to the local gallery.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

var (
	genQuality  string
	genSize     string
	genProvider string
	genRelayURL string
	genToken    string
	genTimeout  time.Duration
)

func init() {
	generateCmd.Flags().StringVar(&genQuality, "quality", string(models.QualityMedium), "Image quality: low, medium, high")
	generateCmd.Flags().StringVar(&genSize, "size", string(models.SizeSquare), "Image size: 1024x1024, 1024x1536, 1536x1024")
	generateCmd.Flags().StringVar(&genProvider, "provider", "fal", "Provider: fal, openai, dalle")
	generateCmd.Flags().StringVar(&genRelayURL, "relay-url", "http://localhost:8080/api/proxy", "Relay endpoint")
	generateCmd.Flags().StringVar(&genToken, "token", "", "Bearer token for a relay with authentication enabled")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 2*time.Minute, "Request timeout")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log := cliLogger()

	provider, err := imagegen.NewProvider(genProvider)
	if err != nil {
		return err
	}
	remote := relay.NewRemoteClient(genRelayURL, genToken, genTimeout)
	client := imagegen.NewClient(remote, provider, log)

	galleries, err := openGalleries(log)
	if err != nil {
		return err
	}
	defer galleries.Close()

	svc := services.NewGenerationService(client, assets.Inline{}, galleries, log)
	settings := models.ImageSettings{Quality: models.Quality(genQuality), Size: models.Size(genSize)}

	img, err := svc.Generate(cmd.Context(), "", strings.Join(args, " "), settings)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(img, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
