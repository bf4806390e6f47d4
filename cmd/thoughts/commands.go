package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aupadhyay/thoughts/internal/config"
	"github.com/aupadhyay/thoughts/internal/surface"
	"github.com/aupadhyay/thoughts/internal/thoughts"
)

// --- add ---

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Capture a thought",
	Long: `Capture a thought, optionally with the context it was captured in.

Context flags are stored as metadata and also appended to the content as
plain lines so they show up in searches.

Examples:
  thoughts add "retry budget should be per-tenant"
  thoughts add "read later" --url https://example.com/post
  thoughts add "this bassline" --track "Khruangbin - Maria También"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		app, _ := cmd.Flags().GetString("app")
		bundleID, _ := cmd.Flags().GetString("bundle-id")
		track, _ := cmd.Flags().GetString("track")

		in, err := captureInput(strings.Join(args, " "), captureContext{
			URL:      url,
			App:      app,
			BundleID: bundleID,
			Track:    track,
		})
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var created thoughts.Thought
		if err := client.call(cmd.Context(), "createThought", in, &created); err != nil {
			return err
		}
		printSuccess("Captured thought %s", created.ID)
		return nil
	},
}

func init() {
	addCmd.Flags().String("url", "", "URL that was open when capturing")
	addCmd.Flags().String("app", "", "name of the focused application")
	addCmd.Flags().String("bundle-id", "", "bundle identifier of the focused application")
	addCmd.Flags().String("track", "", `playing media as "Artist - Track"`)
}

type captureContext struct {
	URL      string
	App      string
	BundleID string
	Track    string
}

// captureInput builds the createThought payload. Each context value becomes
// both a metadata field and a "key: value" line after a blank line.
func captureInput(text string, c captureContext) (thoughts.CreateThoughtInput, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return thoughts.CreateThoughtInput{}, fmt.Errorf("thought text is required")
	}

	var (
		meta  thoughts.Metadata
		lines []string
		set   bool
	)
	if c.URL != "" {
		meta.URL = c.URL
		lines = append(lines, "url: "+c.URL)
		set = true
	}
	if c.App != "" || c.BundleID != "" {
		meta.App = &thoughts.App{Name: c.App, BundleID: c.BundleID}
		lines = append(lines, "app: "+firstNonEmpty(c.App, c.BundleID))
		set = true
	}
	if c.Track != "" {
		artist, title, ok := strings.Cut(c.Track, " - ")
		if !ok {
			return thoughts.CreateThoughtInput{}, fmt.Errorf(`--track must look like "Artist - Track", got %q`, c.Track)
		}
		meta.Track = &thoughts.Track{Artist: strings.TrimSpace(artist), Track: strings.TrimSpace(title)}
		lines = append(lines, "track: "+meta.Track.Artist+" - "+meta.Track.Track)
		set = true
	}

	in := thoughts.CreateThoughtInput{Content: text}
	if set {
		in.Content = text + "\n\n" + strings.Join(lines, "\n")
		in.Metadata = &meta
	}
	return in, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured thoughts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var list []thoughts.Thought
		if err := client.call(cmd.Context(), "getThoughts", thoughts.GetThoughtsInput{Search: search}, &list); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No thoughts found.")
			return nil
		}
		printThoughts(cmd.OutOrStdout(), list)
		return nil
	},
}

func init() {
	listCmd.Flags().String("search", "", "only show thoughts containing this text")
	listCmd.Flags().Bool("json", false, "print the raw JSON result")
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import thoughts from another SQLite database",
	Long: `Import rows from every table of a SQLite file that has a recognizable
content column (content, text, body, note, message, ...). A timestamp column
is used when one is found; otherwise rows are stamped with the import time.
The source file is opened read-only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// The server resolves paths against its own working directory.
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Importing %s", path)
		var out thoughts.ImportDatabaseOutput
		if err := client.call(cmd.Context(), "importDatabase", thoughts.ImportDatabaseInput{FilePath: path}, &out); err != nil {
			return err
		}

		for _, t := range out.Tables {
			switch {
			case t.Error != "":
				printWarning("%s: %s", t.Table, t.Error)
			case t.Skipped:
				printStatus(t.Table, "skipped (no content column)")
			default:
				ts := t.TimestampColumn
				if ts == "" {
					ts = "import time"
				}
				printStatus(t.Table, "%d rows from %s, timestamps from %s", t.Imported, t.ContentColumn, ts)
			}
		}
		printSuccess("Imported %d thoughts", out.ImportedCount)
		return nil
	},
}

// --- purge ---

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all thoughts",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL thoughts. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var out thoughts.DeleteAllOutput
		if err := client.call(cmd.Context(), "deleteAllThoughts", nil, &out); err != nil {
			return err
		}
		printSuccess("Deleted %d thoughts", out.Deleted)
		return nil
	},
}

func init() {
	purgeCmd.Flags().Bool("confirm", false, "confirm deletion")
}

// --- openapi ---

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Print the OpenAPI document for the action routes",
	Long: `Generate the OpenAPI document from the registered actions without
starting a server. With --output the format follows the file extension
unless --format is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		surf, err := buildSurface(cfg.BaseURL())
		if err != nil {
			return err
		}

		if output == "" {
			return surf.WriteDocument(cmd.OutOrStdout(), format)
		}
		if format == "" {
			if err := surf.WriteDocumentFile(output); err != nil {
				return err
			}
		} else {
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			if err := surf.WriteDocument(f, format); err != nil {
				return err
			}
		}
		printSuccess("OpenAPI document written to %s", output)
		return nil
	},
}

func init() {
	openapiCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	openapiCmd.Flags().String("format", "", "json or yaml (default: json, or from --output extension)")
}

// buildSurface registers the actions against a throwaway in-memory store;
// generation never touches storage.
func buildSurface(serverURL string) (*surface.Surface, error) {
	a, err := openApp(":memory:", nil)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return surface.Generate(a.registry.Operations(), thoughts.APIInfo(serverURL))
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", config.ConfigFilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  %s\n",
				colorize(colorBold, k.Key), k.Value, colorize(colorDim, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a configuration value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.ValidKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
