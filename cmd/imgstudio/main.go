package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/imgstudio/imgstudio/internal/config"
	"github.com/imgstudio/imgstudio/internal/display"
	"github.com/imgstudio/imgstudio/internal/gallery"
	"github.com/imgstudio/imgstudio/internal/history"
	"github.com/imgstudio/imgstudio/internal/image"
	"github.com/imgstudio/imgstudio/internal/keys"
	"github.com/imgstudio/imgstudio/internal/provider"
	"github.com/imgstudio/imgstudio/internal/provider/gemini"
	"github.com/imgstudio/imgstudio/internal/studio"
	"github.com/imgstudio/imgstudio/internal/tui"
	"github.com/imgstudio/imgstudio/pkg/models"
)

const keyService = "gemini"

var (
	version = "dev"
	commit  = "none"
)

var (
	flagModel      string
	flagAspect     string
	flagResolution string
	flagQuality    string
	flagCount      int
	flagOutput     string
	flagFormat     string
	flagAPIKey     string
	flagVerbose    bool
	flagNoDisplay  bool
)

type App struct {
	Out         io.Writer
	Err         io.Writer
	Registry    *models.ModelRegistry
	GetEnv      func(string) string
	NewProvider func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error)
	NewSaver    func() *image.Saver
}

func DefaultApp() *App {
	return &App{
		Out:      os.Stdout,
		Err:      os.Stderr,
		Registry: models.DefaultRegistry(),
		GetEnv:   os.Getenv,
		NewProvider: func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error) {
			return gemini.New(cfg, registry)
		},
		NewSaver: image.NewSaver,
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config.LoadEnv()
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgstudio [prompt]",
		Short: "Interactive studio for AI image generation",
		Long: `imgstudio generates images from text prompts using the Gemini image API.

Run it with no arguments for the interactive studio: prompt history,
image cards with upscale and download actions, and theme switching.
Pass a prompt for a one-shot generation.

Examples:
  imgstudio
  imgstudio "a sunset over mountains"
  imgstudio -a 16:9 --resolution 2K -n 3 "panoramic cityscape"`,
		Args:    cobra.MaximumNArgs(1),
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagVerbose {
				log.SetLevel(log.DebugLevel)
			}
			if len(args) == 0 {
				return runStudio(app)
			}
			return runGenerate(args[0], app)
		},
	}

	cmd.Flags().StringVarP(&flagModel, "model", "m", models.DefaultModel, "model to use")
	cmd.Flags().StringVarP(&flagAspect, "aspect", "a", "1:1", "aspect ratio (1:1, 16:9, 9:16, 4:3, 3:4)")
	cmd.Flags().StringVar(&flagResolution, "resolution", "", "output resolution (1K, 2K, 4K)")
	cmd.Flags().StringVarP(&flagQuality, "quality", "q", "", "quality level (standard, high)")
	cmd.Flags().IntVarP(&flagCount, "count", "n", 1, "number of images to generate")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output filename")
	cmd.Flags().StringVarP(&flagFormat, "format", "f", "png", "output format (png, jpeg, webp)")
	cmd.Flags().StringVar(&flagAPIKey, "api-key", "", "API key (defaults to stored key, then "+config.APIKeyEnv+")")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "log full API requests and responses")
	cmd.Flags().BoolVar(&flagNoDisplay, "no-display", false, "skip inline terminal preview")

	cmd.AddCommand(newKeysCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newGalleryCmd(app))

	return cmd
}

func buildProvider(app *App) (provider.Provider, error) {
	apiKey, source, err := keys.GetAPIKey(flagAPIKey, keyService, config.APIKeyEnv)
	if err != nil {
		return nil, err
	}
	log.Debug("resolved API key", "source", source, "key", keys.MaskKey(apiKey))

	cfg := &provider.Config{APIKey: apiKey, Verbose: flagVerbose}
	return app.NewProvider(cfg, app.Registry)
}

func runStudio(app *App) error {
	prov, err := buildProvider(app)
	if err != nil {
		// The studio still opens; the first generate routes to the key
		// instructions or the selector.
		log.Debug("no provider yet", "err", err)
	}

	hist, err := history.NewStore()
	if err != nil {
		return err
	}

	configDir, err := config.Dir()
	if err != nil {
		return err
	}

	var manager *gallery.Manager
	if dataDir, derr := config.DataDir(); derr == nil {
		if store, serr := gallery.NewStoreWithPath(filepath.Join(dataDir, "gallery.db")); serr == nil {
			manager = gallery.NewManager(store, dataDir)
			defer store.Close()
		}
	}

	keyStore := keys.NewStoreWithDir(configDir)
	selector := keys.NewTermSelector(keyStore, keyService)

	ctrl := studio.NewController(studio.Options{
		Provider:    prov,
		Registry:    app.Registry,
		History:     hist,
		Gallery:     manager,
		Selector:    selector,
		SettingsDir: configDir,
	})

	return tui.Run(tui.Options{
		Controller: ctrl,
		ProviderFactory: func() (provider.Provider, error) {
			return buildProvider(app)
		},
	})
}

func runGenerate(prompt string, app *App) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	format := models.OutputFormat(flagFormat)
	if !format.IsValid() {
		return fmt.Errorf("invalid format %q: must be one of %v", flagFormat, models.ValidFormats())
	}

	req := models.NewRequest(prompt)
	req.Model = flagModel
	req.AspectRatio = models.AspectRatio(flagAspect)
	req.Resolution = models.Resolution(flagResolution)
	req.Quality = models.Quality(flagQuality)
	req.Count = flagCount
	req.Format = format

	caps, ok := app.Registry.Get(flagModel)
	if !ok {
		return fmt.Errorf("unknown model %q: available models: %v", flagModel, app.Registry.List())
	}

	caps.ApplyDefaults(req)

	if err := caps.Validate(req); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	prov, err := buildProvider(app)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "Generating %d image(s) with %s...\n", req.Count, req.Model)

	resp, err := prov.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	saver := app.NewSaver()
	paths, err := saver.SaveAll(ctx, resp, flagOutput, format)
	if err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Fprintf(app.Out, "Saved: %s\n", path)
	}

	if !flagNoDisplay && display.IsTerminalSupported() {
		d := display.New(app.Out)
		if err := d.DisplayAll(resp); err != nil {
			log.Debug("inline display failed", "err", err)
		}
	}

	fmt.Fprintln(app.Out, "Done!")
	return nil
}

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored API keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store the Gemini API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			return keys.NewTermSelector(store, keyService).Open(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored key, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			key, err := store.Get(keyService)
			if err != nil {
				return err
			}
			if key == "" {
				fmt.Fprintln(app.Out, keys.InstructionalMessage(config.APIKeyEnv))
				return nil
			}
			fmt.Fprintf(app.Out, "%s: %s\n", keyService, keys.MaskKey(key))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Delete(keyService); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted key for %s\n", keyService)
			return nil
		},
	})

	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage prompt history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved prompts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewStore()
			if err != nil {
				return err
			}
			entries := store.Load()
			if len(entries) == 0 {
				fmt.Fprintln(app.Out, "No prompt history.")
				return nil
			}
			for i, prompt := range entries {
				fmt.Fprintf(app.Out, "%3d. %s\n", i+1, prompt)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all saved prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "History cleared.")
			return nil
		},
	})

	return cmd
}

func newGalleryCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "List saved images, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := config.DataDir()
			if err != nil {
				return err
			}
			store, err := gallery.NewStoreWithPath(filepath.Join(dataDir, "gallery.db"))
			if err != nil {
				return err
			}
			defer store.Close()

			cards, err := store.ListCards(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(cards) == 0 {
				fmt.Fprintln(app.Out, "Gallery is empty.")
				return nil
			}
			for _, card := range cards {
				fmt.Fprintf(app.Out, "%s  %-8s  %s\n    %s\n",
					card.CreatedAt.Local().Format("2006-01-02 15:04"),
					card.Operation, card.Prompt, card.ImagePath)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum cards to list (0 for all)")
	return cmd
}
