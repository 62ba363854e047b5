// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/sharerag"
	"github.com/poiesic/sharerag/auth"
	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/notify"
	"github.com/poiesic/sharerag/reembed"
	"github.com/poiesic/sharerag/retry"
	"github.com/urfave/cli/v2"
)

func main() {
	// Flag EnvVars are read during parsing, so .env must be loaded first.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal(err)
	}
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sharerag",
		Usage: "Retrieval over SharePoint documents with on-demand indexing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "sharerag.yaml",
				EnvVars: []string{"SHARERAG_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "BadgerDB directory for snapshots and the local index",
				EnvVars: []string{"SHARERAG_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "tenant-id",
				Usage:   "Entra ID tenant",
				EnvVars: []string{"SHARERAG_TENANT_ID"},
			},
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "App registration client id",
				EnvVars: []string{"SHARERAG_CLIENT_ID"},
			},
			&cli.StringFlag{
				Name:    "client-secret",
				Usage:   "App registration client secret",
				EnvVars: []string{"SHARERAG_CLIENT_SECRET"},
			},
			&cli.StringFlag{
				Name:    "signing-key",
				Usage:   "Key that signs media links",
				EnvVars: []string{"SHARERAG_SIGNING_KEY"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				EnvVars: []string{"SHARERAG_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model or Azure deployment name",
				EnvVars: []string{"SHARERAG_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "embedding-token",
				Usage:   "Embedding service API key",
				EnvVars: []string{"SHARERAG_EMBEDDING_TOKEN"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "search",
				Usage:  "Search SharePoint, index the hits, and query the index",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "keywords",
						Aliases:  []string{"k"},
						Usage:    "Keywords sent to SharePoint search",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Natural-language query for the index (defaults to the keywords)",
					},
					maxFlag(),
					userTokenFlag(),
				},
			},
			{
				Name:   "indexed",
				Usage:  "Query already indexed documents the caller can read",
				Action: indexedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Natural-language query for the index",
						Required: true,
					},
					maxFlag(),
					userTokenFlag(),
				},
			},
			{
				Name:   "ensure",
				Usage:  "Bring one drive item into the index",
				Action: ensureCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "drive-id", Usage: "Drive id", Required: true},
					&cli.StringFlag{Name: "item-id", Usage: "Drive item id", Required: true},
					&cli.StringFlag{Name: "name", Usage: "File name, used to pick a chunker", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Display title (defaults to the name)"},
					&cli.TimestampFlag{
						Name:   "last-modified",
						Usage:  "Source modification time (RFC 3339); an older index copy is replaced",
						Layout: time.RFC3339,
					},
					userTokenFlag(),
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every fragment embedding in the local index",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of fragments to embed per request",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N fragments",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each embedding call",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:      "link",
				Usage:     "Print a time-limited link to a stored page snapshot",
				ArgsUsage: "<snapshot-name>",
				Action:    linkCommand,
			},
		},
	}
}

func maxFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "max",
		Aliases: []string{"n"},
		Usage:   "Maximum number of fragments to return",
		Value:   5,
	}
}

func userTokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user-token",
		Usage:   "Bearer token of the acting user; the app identity is used when empty",
		EnvVars: []string{"SHARERAG_USER_TOKEN"},
	}
}

// loadConfig reads the config file and overlays any global flags that were set.
func loadConfig(c *cli.Context) (*sharerag.Config, error) {
	cfg, err := sharerag.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	overlay := map[string]*string{
		"data-dir":        &cfg.DataDir,
		"tenant-id":       &cfg.Graph.TenantID,
		"client-id":       &cfg.Graph.ClientID,
		"client-secret":   &cfg.Graph.ClientSecret,
		"signing-key":     &cfg.Blob.SigningKey,
		"embedding-host":  &cfg.Embedding.Host,
		"embedding-model": &cfg.Embedding.Model,
		"embedding-token": &cfg.Embedding.Token,
	}
	for name, field := range overlay {
		if c.IsSet(name) {
			*field = c.String(name)
		}
	}
	return cfg, nil
}

func openService(c *cli.Context) (*sharerag.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return sharerag.NewService(cfg, sharerag.WithHub(notify.LogHub{Logger: slog.Default()}))
}

func callContext(c *cli.Context, svc *sharerag.Service) (*auth.CallContext, error) {
	if token := c.String("user-token"); token != "" {
		return svc.UserContext(token), nil
	}
	return svc.AppContext(c.Context)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func searchCommand(c *cli.Context) error {
	if c.Int("max") < 1 {
		return fmt.Errorf("max must be positive, got %d", c.Int("max"))
	}
	query := c.String("query")
	if query == "" {
		query = c.String("keywords")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	cc, err := callContext(c, svc)
	if err != nil {
		return err
	}
	items, err := svc.Orchestrator().Search(c.Context, c.String("keywords"), query, cc, c.Int("max"))
	if err != nil {
		return err
	}
	return printJSON(c, items)
}

func indexedCommand(c *cli.Context) error {
	if c.Int("max") < 1 {
		return fmt.Errorf("max must be positive, got %d", c.Int("max"))
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	cc, err := callContext(c, svc)
	if err != nil {
		return err
	}
	items, err := svc.Orchestrator().SearchIndexed(c.Context, c.String("query"), cc, c.Int("max"))
	if err != nil {
		return err
	}
	return printJSON(c, items)
}

// ensureOutput is the printed form of an IndexResult.
type ensureOutput struct {
	DocumentID string `json:"documentId"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
}

func ensureCommand(c *cli.Context) error {
	candidate := core.CandidateDocument{
		ID:      c.String("item-id"),
		DriveID: c.String("drive-id"),
		Name:    c.String("name"),
		Title:   c.String("title"),
	}
	if candidate.Title == "" {
		candidate.Title = candidate.Name
	}
	if ts := c.Timestamp("last-modified"); ts != nil {
		candidate.LastModified = *ts
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	cc, err := callContext(c, svc)
	if err != nil {
		return err
	}
	result := svc.Orchestrator().EnsureIndexed(c.Context, candidate, cc)
	out := ensureOutput{DocumentID: result.DocumentID, State: result.State.String()}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	if err := printJSON(c, out); err != nil {
		return err
	}
	if !result.OK() {
		return fmt.Errorf("indexing %s failed: %w", result.DocumentID, result.Err)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", c.Int("batch-size"))
	}
	if c.Int("max-retries") <= 0 {
		return fmt.Errorf("max-retries must be positive, got %d", c.Int("max-retries"))
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Retry:          retry.Policy{MaxAttempts: c.Int("max-retries"), BaseDelay: c.Duration("retry-delay")},
	}
	_, err = svc.Reembed(c.Context, config, c.App.ErrWriter)
	return err
}

func linkCommand(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return errors.New("snapshot name is required")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	link, err := svc.MediaLink(c.Context, name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, link)
	return err
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
