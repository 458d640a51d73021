package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2/clientcredentials"

	ingestion "github.com/bcpartner/go-ingestion"
	"github.com/bcpartner/go-ingestion/bccontainer"
	"github.com/bcpartner/go-ingestion/telemetry"
)

const (
	PARTNER_TENANT_ID     = "PARTNER_TENANT_ID"
	PARTNER_CLIENT_ID     = "PARTNER_CLIENT_ID"
	PARTNER_CLIENT_SECRET = "PARTNER_CLIENT_SECRET"
	PARTNER_INGESTION_URL = "PARTNER_INGESTION_URL"
)

// Build-time variables set via ldflags
var (
	// Version is the semantic version of the application
	Version = "dev"
	// GitCommit is the git commit SHA at build time
	GitCommit = "unknown"
	// BuildTime is the time of the build
	BuildTime = "unknown"
)

var (
	baseURL  string
	silent   bool
	verbose  bool
	maxPages int
	data     string
	shell    string
)

var rootCmd = &cobra.Command{
	Use:   "bcingest",
	Short: "Work with the Partner Center Ingestion API and Business Central containers",
	Long: `bcingest calls the Microsoft Partner Center Ingestion API with the
five generic verbs (get, list, post, put, delete) and reads service
configuration out of local Business Central containers.

Authentication uses the client credentials flow. Set PARTNER_TENANT_ID,
PARTNER_CLIENT_ID and PARTNER_CLIENT_SECRET in the environment or in a
.env file next to the binary.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Fetch a single resource",
	Long:  `Fetch one resource by its API path, for example "products/12345".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		res, err := client.Get(cmd.Context(), args[0], requestOptions()...)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var listCmd = &cobra.Command{
	Use:   "list <path>",
	Short: "Fetch a whole collection",
	Long: `Fetch every item of a collection, for example "products". Pagination is
followed transparently; use --max-pages to bound it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		items, err := ingestion.Collect(client.GetCollection(cmd.Context(), args[0], requestOptions()...))
		if err != nil {
			return err
		}
		return printJSON(items)
	},
}

var postCmd = &cobra.Command{
	Use:   "post <path>",
	Short: "Create a resource",
	Long:  `Create a resource from a JSON body given with --data (inline or @file).`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBody()
		if err != nil {
			return err
		}
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		res, err := client.Post(cmd.Context(), args[0], body, requestOptions()...)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var putCmd = &cobra.Command{
	Use:   "put <path>",
	Short: "Replace a resource",
	Long: `Replace a resource from a JSON body given with --data. The body must
carry the "@odata.etag" of a prior read; it is sent as If-Match.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBody()
		if err != nil {
			return err
		}
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		res, err := client.Put(cmd.Context(), args[0], body, requestOptions()...)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := client.Delete(cmd.Context(), args[0], requestOptions()...); err != nil {
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

var serverConfigCmd = &cobra.Command{
	Use:   "server-config <container>",
	Short: "Read CustomSettings.config from a Business Central container",
	Long: `Open a shell into the named container, read the service's
CustomSettings.config and print its settings as key=value lines in file
order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		executor := bccontainer.NewDockerExecutor()
		executor.Shell = shell

		reader := bccontainer.NewReader(executor, bccontainer.WithLogger(newLogger()))
		cfg, err := reader.ServerConfiguration(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, setting := range cfg.Settings() {
			fmt.Printf("%s=%s\n", setting.Key, setting.Value)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bcingest %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Ingestion API base URL override")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "Suppress request logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	listCmd.Flags().IntVar(&maxPages, "max-pages", 0, "Stop with an error after this many pages (0 = unlimited)")
	postCmd.Flags().StringVarP(&data, "data", "d", "", "Request body as inline JSON or @file")
	putCmd.Flags().StringVarP(&data, "data", "d", "", "Request body as inline JSON or @file")
	serverConfigCmd.Flags().StringVar(&shell, "shell", "", "In-container shell binary (default powershell)")

	rootCmd.AddCommand(getCmd, listCmd, postCmd, putCmd, deleteCmd, serverConfigCmd, versionCmd)
}

// newClient builds an Ingestion API client from the environment.
func newClient(ctx context.Context) (*ingestion.Client, error) {
	tenantID := os.Getenv(PARTNER_TENANT_ID)
	clientID := os.Getenv(PARTNER_CLIENT_ID)
	clientSecret := os.Getenv(PARTNER_CLIENT_SECRET)

	var missingVars []string
	if tenantID == "" {
		missingVars = append(missingVars, PARTNER_TENANT_ID)
	}
	if clientID == "" {
		missingVars = append(missingVars, PARTNER_CLIENT_ID)
	}
	if clientSecret == "" {
		missingVars = append(missingVars, PARTNER_CLIENT_SECRET)
	}
	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing environment variables: %s", strings.Join(missingVars, ", "))
	}

	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		Scopes:       []string{"https://api.partner.microsoft.com/.default"},
	}

	logger := newLogger()
	opts := []ingestion.ClientOption{
		ingestion.WithTokenSource(cc.TokenSource(ctx)),
		ingestion.WithLogger(logger),
		ingestion.WithTelemetry(telemetry.NewTracker(telemetry.WithLogger(logger))),
	}
	if baseURL == "" {
		baseURL = os.Getenv(PARTNER_INGESTION_URL)
	}
	if baseURL != "" {
		opts = append(opts, ingestion.WithBaseURL(baseURL))
	}
	if maxPages > 0 {
		opts = append(opts, ingestion.WithMaxPages(maxPages))
	}

	return ingestion.NewClient(opts...)
}

func requestOptions() []ingestion.RequestOption {
	var opts []ingestion.RequestOption
	if silent {
		opts = append(opts, ingestion.WithSilent())
	}
	return opts
}

// newLogger creates a structured logger for the command run.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// readBody resolves the --data flag into a request body. A leading @ reads
// the body from a file, like curl.
func readBody() (any, error) {
	if data == "" {
		return nil, fmt.Errorf("--data is required")
	}

	raw := []byte(data)
	if strings.HasPrefix(data, "@") {
		var err error
		raw, err = os.ReadFile(strings.TrimPrefix(data, "@"))
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
