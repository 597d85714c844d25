package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sqlplugin/internal/domain"
	"sqlplugin/internal/logging"
	"sqlplugin/internal/query"
	"sqlplugin/internal/secret"
	"sqlplugin/internal/service"
)

// cli carries state from flag parsing into the commands.
type cli struct {
	v        *viper.Viper
	fs       afero.Fs
	resolver *secret.Resolver
	settings Settings
	logger   *log.Logger
}

// Execute runs the command line against the real filesystem.
func Execute() error {
	return NewRootCommand(afero.NewOsFs(), nil).Execute()
}

// NewRootCommand builds the command tree. A nil resolver means the default one.
func NewRootCommand(fs afero.Fs, resolver *secret.Resolver) *cobra.Command {
	c := &cli{v: newViper(), fs: fs, resolver: resolver}

	root := &cobra.Command{
		Use:           "sqlplugin",
		Short:         "Keyed single-record lookups over SQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
				return err
			}
			settings, err := LoadSettings(c.v, c.fs)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			c.settings = settings
			c.logger = logging.NewWithWriter(cmd.ErrOrStderr(), settings.Debug)
			if c.resolver == nil {
				c.resolver = secret.NewResolver()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String(keyPluginID, "sql-lookup", "Plugin id, also the default configuration file name")
	flags.String(keyDescription, "Keyed single-record SQL lookups", "Plugin description")
	flags.String(keyConfigDir, ".", "Directory holding <plugin-id>.properties")
	flags.StringSliceP(keyConfig, "c", nil, "Additional .properties files, later ones override earlier ones")
	flags.String(keyEnvFile, ".env", "Environment file loaded before reading settings")
	flags.Bool(keyDebug, false, "Enable debug logging")

	root.AddCommand(
		c.serveCommand(),
		c.lookupCommand(),
		c.checkCommand(),
		c.secretCommand(),
	)
	return root
}

func (c *cli) newApp(opts ...Option) *App {
	return New(c.settings, c.fs, c.logger, append([]Option{WithResolver(c.resolver)}, opts...)...)
}

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve lookups over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.newApp().ServeMCP(cmd.Context())
		},
	}
}

func (c *cli) lookupCommand() *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   "lookup <query-id> <key>",
		Short: "Run one lookup and print the response as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.newApp(WithPluginOptions(service.WithoutKeepalive()))
			ctx := cmd.Context()
			if err := a.Start(ctx); err != nil {
				return err
			}
			defer a.Stop(context.Background())

			resp := a.Plugin().Read(ctx, domain.NewReadRequest(requestID, args[0], args[1]))
			if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if resp.Status == domain.StatusFailure {
				return errors.New(resp.ErrorMessage)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "Request id to echo (generated when empty)")
	return cmd
}

func (c *cli) checkCommand() *cobra.Command {
	var offline, showConfig bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compile the configured queries and test the database connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			a := c.newApp(WithPluginOptions(service.WithoutKeepalive()))

			props, err := a.LoadProperties()
			if err != nil {
				return err
			}
			if showConfig {
				fmt.Fprint(out, props.String())
			}

			registry, err := query.NewCompiler(c.logger).CompileAll(props.Root())
			if err != nil {
				return err
			}
			for _, id := range registry.IDs() {
				def, _ := registry.Lookup(id)
				fmt.Fprintf(out, "query %s\n", def)
				for _, skipped := range def.Skipped() {
					fmt.Fprintf(out, "  skipped: %v\n", skipped)
				}
			}
			fmt.Fprintf(out, "%d queries compiled\n", registry.Len())
			if offline {
				return nil
			}

			ctx := cmd.Context()
			startErr := a.Start(ctx)
			defer a.Stop(context.Background())
			health, _ := a.Container().Health(c.settings.PluginID)
			fmt.Fprintf(out, "health %s", health.Overall.State)
			if health.Overall.Comment != "" {
				fmt.Fprintf(out, " (%s)", health.Overall.Comment)
			}
			fmt.Fprintln(out)
			return startErr
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Only compile queries, do not connect")
	cmd.Flags().BoolVar(&showConfig, "show-config", false, "Print the effective configuration, secrets masked")
	return cmd
}

func (c *cli) secretCommand() *cobra.Command {
	var scheme string
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets referenced as <scheme>:<key> in configuration",
	}
	cmd.PersistentFlags().StringVar(&scheme, "store", "keychain", "Secret store scheme")

	store := func() (secret.SecretStore, error) {
		s, ok := c.resolver.Store(scheme)
		if !ok {
			return nil, fmt.Errorf("unknown secret store %q", scheme)
		}
		return s, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a secret; the value is read from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store()
			if err != nil {
				return err
			}
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return errors.New("refusing to store an empty secret")
			}
			if err := s.Set(args[0], []byte(value)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored; reference it as %s:%s\n", scheme, args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store()
			if err != nil {
				return err
			}
			return s.Delete(args[0])
		},
	})
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
