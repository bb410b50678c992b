package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	sqliteadapter "github.com/leesurelye/relations-visualization/internal/adapters/db/sqlite"
	httpadapter "github.com/leesurelye/relations-visualization/internal/adapters/http"
	"github.com/leesurelye/relations-visualization/internal/adapters/loader"
	rpcadapter "github.com/leesurelye/relations-visualization/internal/adapters/rpcjson"
	"github.com/leesurelye/relations-visualization/internal/application"
	"github.com/leesurelye/relations-visualization/internal/domain"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "relviz",
		Usage: "Database relation graph server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			importCommand(),
			graphCommand(),
			tenantsCommand(),
			tagsCommand(),
			searchCommand(),
			authCommand(),
			importsCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, defaultServerConfig())
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP and JSON-RPC server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file path"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "tags-dataset", Usage: "tags dataset file path or URL"},
			&cli.StringFlag{Name: "relations-dataset", Usage: "relations dataset file path or URL"},
			&cli.BoolFlag{Name: "watch", Usage: "reload when dataset files change"},
			&cli.StringFlag{Name: "admin-password", Usage: "password for mutating operations"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadServerConfig(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("addr") {
				cfg.Addr = c.String("addr")
			}
			if c.IsSet("rpc-socket") {
				cfg.RPCSocket = c.String("rpc-socket")
			}
			if c.IsSet("db-path") {
				cfg.DBPath = c.String("db-path")
			}
			if c.IsSet("tags-dataset") {
				cfg.TagsDataset = c.String("tags-dataset")
			}
			if c.IsSet("relations-dataset") {
				cfg.RelationsDataset = c.String("relations-dataset")
			}
			if c.IsSet("watch") {
				cfg.Watch = c.Bool("watch")
			}
			if c.IsSet("admin-password") {
				cfg.AdminPassword = c.String("admin-password")
			}
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg serverConfig) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := sqliteadapter.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	repo := sqliteadapter.NewDatasetRepository(db)
	service := application.NewMapService(repo, logger, cfg.Layout)
	if err := service.SetAdminPassword(cfg.AdminPassword); err != nil {
		return err
	}

	hasDatasets, err := cfg.datasetsConfigured()
	if err != nil {
		return err
	}
	if hasDatasets {
		service.SetSource(loader.NewSource(cfg.TagsDataset, cfg.RelationsDataset, logger))
		if err := service.Reload(ctx); err != nil {
			return fmt.Errorf("initial dataset load: %w", err)
		}
	} else if err := service.LoadFromStore(ctx); err != nil {
		logger.Warn("no stored datasets available, starting with an empty model", "error", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if hasDatasets && cfg.Watch {
		settle, err := cfg.settleDelay()
		if err != nil {
			return err
		}
		watcher := loader.NewWatcher(
			[]string{cfg.TagsDataset, cfg.RelationsDataset},
			settle, service.Reload, logger)
		go func() {
			if err := watcher.Run(serverCtx); err != nil && serverCtx.Err() == nil {
				logger.Error("dataset watcher stopped", "error", err)
			}
		}()
	}

	router := httpadapter.NewRouter(service)
	srv := &http.Server{Addr: cfg.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(cfg.RPCSocket, service)
	if err != nil {
		return err
	}
	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Printf("json-rpc listening on unix://%s", cfg.RPCSocket)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import datasets directly into the database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db-path", Value: "relviz.db", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "tags", Required: true, Usage: "tags dataset file path or URL"},
			&cli.StringFlag{Name: "relations", Required: true, Usage: "relations dataset file path or URL"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			db, err := sqliteadapter.Open(c.String("db-path"))
			if err != nil {
				return err
			}
			if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
				return err
			}

			source := loader.NewSource(c.String("tags"), c.String("relations"), logger)
			tags, relations, err := source.Load(ctx)
			if err != nil {
				return err
			}

			repo := sqliteadapter.NewDatasetRepository(db)
			service := application.NewMapService(repo, logger, domain.DefaultLayout())
			if err := service.ImportDatasets(ctx, tags, relations, "import"); err != nil {
				return err
			}

			view := service.Graph("")
			fmt.Printf("imported %d tags and %d relations (%d nodes, %d edges)\n",
				len(tags), len(relations), len(view.Nodes), len(view.Edges))
			return nil
		},
	}
}

func graphCommand() *cli.Command {
	return &cli.Command{
		Name:  "graph",
		Usage: "Graph model commands",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the current graph model",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "filter by tenant id"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var view domain.View
					if err := doGraphGet(ctx, cfg, c.String("tenant"), &view); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(view)
					}
					printGraphView(view)
					return nil
				},
			},
			{
				Name:  "export",
				Usage: "Export a graph snapshot",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "filter by tenant id"},
					&cli.StringFlag{Name: "output", Usage: "write snapshot to file instead of stdout"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var snap domain.Snapshot
					if err := doExport(ctx, cfg, c.String("tenant"), &snap); err != nil {
						return err
					}
					if out := c.String("output"); out != "" {
						if err := writeJSONFile(out, snap); err != nil {
							return err
						}
						fmt.Printf("snapshot %s written to %s\n", snap.SnapshotID, out)
						return nil
					}
					return printJSON(snap)
				},
			},
		},
	}
}

func tenantsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tenants",
		Usage: "List tenants present in the model",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var out struct {
				Tenants []string `json:"tenants"`
			}
			if err := doTenantsList(ctx, cfg, &out); err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			printTenants(out.Tenants)
			return nil
		},
	}
}

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "Tag commands",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show per-tag occurrence statistics",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Statistics []domain.TagStat `json:"statistics"`
					}
					if err := doTagsStats(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printTagStats(out.Statistics)
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Show details for one tag name",
				ArgsUsage: "<tag-name>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					name := c.Args().First()
					if name == "" {
						return fmt.Errorf("tag name is required")
					}
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var details domain.TagDetails
					if err := doTagsGet(ctx, cfg, name, &details); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(details)
					}
					printTagDetails(details)
					return nil
				},
			},
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Resolve a tag id to its edges",
		ArgsUsage: "<tag-id>",
		Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			tagID := c.Args().First()
			if tagID == "" {
				return fmt.Errorf("tag id is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var result domain.SearchResult
			if err := doSearch(ctx, cfg, tagID, &result); err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(result)
			}
			printSearchResult(result)
			return nil
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds"},
					&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
					&cli.StringFlag{Name: "socket", Value: "/tmp/relviz.sock"},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					var out struct {
						Token string `json:"token"`
					}
					if err := doLogin(ctx, cfg, c.String("password"), c.String("token-name"), &out); err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("logged in")
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Revoke and clear local CLI auth token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					_ = doLogout(ctx, cfg)
					cfg.Token = ""
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func importsCommand() *cli.Command {
	return &cli.Command{
		Name:  "imports",
		Usage: "Import run commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent dataset imports",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 30},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Imports []domain.ImportRun `json:"imports"`
					}
					if err := doImportsList(ctx, cfg, int(c.Int("limit")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printImportRuns(out.Imports)
					return nil
				},
			},
		},
	}
}
