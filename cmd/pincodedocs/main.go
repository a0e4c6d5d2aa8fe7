package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/binder"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/executor"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/openapi"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/render"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/shutdown"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/snippet"
	"github.com/Maharshi-24/Documentation-PostalPincodes/pkg/playground"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool
	stateFile  string

	// Serve flags
	addr         string
	registryFile string
	watch        bool

	// Endpoints flags
	exportYAML bool

	// Request flags
	env      string
	lang     string
	sets     []string
	copyClip bool
	asHTML   bool
	raw      bool
	timeout  time.Duration

	// OpenAPI flags
	format string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pincodedocs",
		Short: "Indian Postal Pincode API docs and playground",
		Long: `pincodedocs serves interactive documentation for the Indian Postal Pincode API.

It renders every endpoint with parameters, response fields and code snippets in
cURL, Python and JavaScript, and runs live requests against a selectable environment.`,
		Version:      version,
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the docs and playground server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	endpointsCmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List documented endpoints",
		Args:  cobra.NoArgs,
		RunE:  runEndpoints,
	}

	snippetCmd := &cobra.Command{
		Use:   "snippet [endpoint]",
		Short: "Print a code snippet for an endpoint",
		Long:  "Print a code snippet for an endpoint. Parameters without --set use their documented examples.",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnippet,
	}

	callCmd := &cobra.Command{
		Use:   "call [endpoint]",
		Short: "Send a request and print the response",
		Args:  cobra.ExactArgs(1),
		RunE:  runCall,
	}

	tryCmd := &cobra.Command{
		Use:   "try [endpoint]",
		Short: "Interactive playground on stdin",
		Long: `Read name=value lines from stdin to fill in parameters.

Auto-trigger endpoints fire on their own once typing pauses. Other endpoints
print the updated cURL command after each line and fire on an empty line.`,
		Args: cobra.ExactArgs(1),
		RunE: runTry,
	}

	envCmd := &cobra.Command{
		Use:   "env [name]",
		Short: "Show or select the active environment",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnv,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "Write the effective configuration to a file",
		Long:  "Write the configuration that results from --config and the other flags. A .json path writes JSON, anything else YAML.",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfig,
	}

	openapiCmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document",
		Args:  cobra.NoArgs,
		RunE:  runOpenAPI,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", playground.DefaultStatePath(), "File persisting the selected environment")
	rootCmd.PersistentFlags().StringVar(&registryFile, "registry", "", "Endpoint registry YAML (default: built-in)")

	// Serve flags
	serveCmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Listen address")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the registry file when it changes")

	// Request flags
	for _, c := range []*cobra.Command{snippetCmd, callCmd, tryCmd} {
		c.Flags().StringVarP(&env, "env", "e", "", "Environment (default: the active one)")
		c.Flags().StringArrayVarP(&sets, "set", "s", nil, "Parameter value as name=value (repeatable)")
	}
	snippetCmd.Flags().StringVarP(&lang, "lang", "l", string(snippet.DefaultLanguage), "Snippet language (curl, python, js)")
	snippetCmd.Flags().BoolVar(&copyClip, "copy", false, "Also copy the snippet to the clipboard")
	snippetCmd.Flags().BoolVar(&asHTML, "html", false, "Print the snippet escaped for HTML")
	callCmd.Flags().BoolVar(&raw, "raw", false, "Print the body exactly as received")
	for _, c := range []*cobra.Command{callCmd, tryCmd} {
		c.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Request timeout")
	}

	// Endpoints flags
	endpointsCmd.Flags().BoolVar(&exportYAML, "yaml", false, "Print the built-in registry YAML, a starting point for --registry")

	// OpenAPI flags
	openapiCmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml)")

	// Add commands
	rootCmd.AddCommand(serveCmd, endpointsCmd, snippetCmd, callCmd, tryCmd, envCmd, configCmd, openapiCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig starts from the config file, or defaults, and applies the
// flags the user actually set.
func buildConfig(cmd *cobra.Command) (*playground.Config, error) {
	config := playground.DefaultConfig()
	if configFile != "" {
		fileConfig, err := playground.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	flags := cmd.Flags()
	if flags.Changed("state-file") || config.StateFile == "" {
		config.StateFile = stateFile
	}
	if flags.Changed("registry") {
		config.Registry = registryFile
	}
	if flags.Changed("addr") {
		config.Server.Addr = addr
	}
	if flags.Changed("watch") {
		config.Watch = watch
	}
	if flags.Changed("timeout") {
		config.Client.Timeout = timeout
	}
	if flags.Changed("verbose") {
		config.Verbose = verbose
	}
	if flags.Changed("debug") {
		config.Debug = debug
	}
	return config, nil
}

func newPlayground(cmd *cobra.Command) (*playground.Playground, error) {
	config, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}
	p, err := playground.New(playground.WithConfig(config))
	if err != nil {
		return nil, fmt.Errorf("failed to create playground: %w", err)
	}
	return p, nil
}

// parseSets turns name=value flags into values. A later flag for the same
// name wins.
func parseSets(pairs []string) (binder.Values, error) {
	values := binder.Values{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", pair)
		}
		values[name] = value
	}
	return values, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := newPlayground(cmd)
	if err != nil {
		return err
	}

	h := shutdown.New(shutdown.Config{Logger: p.Logger()})
	// Steps run in reverse: HTTP first, the state store last.
	h.Register("state", func(context.Context) error { return p.Close() })
	h.RegisterFunc("stats", func() {
		snap := p.Metrics().Snapshot()
		p.Logger().Event(logger.InfoLevel).Fields(snap.Summary()).Msg("playground totals")
	})

	if err := p.Start(h.Context()); err != nil {
		p.Close()
		return fmt.Errorf("failed to watch registry: %w", err)
	}

	srv, err := p.NewServer()
	if err != nil {
		p.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		p.Close()
		return fmt.Errorf("failed to listen: %w", err)
	}
	h.RegisterServer("http", srv)

	printBanner(cmd.OutOrStdout(), p, ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !h.IsShuttingDown() {
			serveErr <- err
			h.Trigger()
		}
	}()

	res := h.Wait(context.Background())
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
	}
	return res.Err
}

func runConfig(cmd *cobra.Command, args []string) error {
	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.SaveToFile(args[0]); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
	return nil
}

func runEndpoints(cmd *cobra.Command, args []string) error {
	if exportYAML {
		_, err := cmd.OutOrStdout().Write(registry.Embedded())
		return err
	}

	p, err := newPlayground(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tMETHOD\tPATH\tTITLE")
	for _, d := range p.Endpoints() {
		title := d.Title
		if d.IsAutoTrigger() {
			title += " (auto)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Key, d.Method, d.Path, title)
	}
	return tw.Flush()
}

func runSnippet(cmd *cobra.Command, args []string) error {
	language, err := snippet.ParseLanguage(lang)
	if err != nil {
		return err
	}
	values, err := parseSets(sets)
	if err != nil {
		return err
	}

	p, err := newPlayground(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	text, err := p.Snippet(args[0], env, language, values)
	if err != nil {
		return err
	}

	if copyClip {
		if snippet.Copy(text) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Copied!")
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "Clipboard unavailable")
		}
	}
	if asHTML {
		text = snippet.EscapeHTML(text)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func runCall(cmd *cobra.Command, args []string) error {
	values, err := parseSets(sets)
	if err != nil {
		return err
	}

	p, err := newPlayground(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	out, err := p.Call(cmd.Context(), args[0], env, values)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out, raw)
	if !out.OK() {
		p.Close()
		os.Exit(2)
	}
	return nil
}

func runEnv(cmd *cobra.Command, args []string) error {
	p, err := newPlayground(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	w := cmd.OutOrStdout()
	if len(args) == 1 {
		if err := p.SetEnvironment(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(w, "Active environment: %s (%s)\n", p.Session().Environment(), p.Session().BaseURL())
		return nil
	}

	active := p.Session().Environment()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range p.Environments().List() {
		marker := " "
		if e.Name == active {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\n", marker, e.Name, e.BaseURL)
	}
	return tw.Flush()
}

func runOpenAPI(cmd *cobra.Command, args []string) error {
	p, err := newPlayground(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	var data []byte
	switch strings.ToLower(format) {
	case "json":
		data, err = openapi.JSON(p.OpenAPI())
	case "yaml", "yml":
		data, err = openapi.YAML(p.OpenAPI())
	default:
		return fmt.Errorf("unknown format %q, want json or yaml", format)
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// colorEnabled reports whether w is a terminal that should get ANSI colours.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printOutcome(w io.Writer, out *executor.Outcome, raw bool) {
	fmt.Fprintf(w, "%s %s\n", out.Method, out.URL)
	fmt.Fprintln(w, out.StatusLine())

	switch {
	case out.Kind == executor.NetworkError || out.Message != "":
		fmt.Fprintln(w, out.Message)
	case raw:
		w.Write(out.Body)
		fmt.Fprintln(w)
	case out.JSON != nil && colorEnabled(w):
		fmt.Fprintln(w, render.ANSI(out.JSON))
	case out.JSON != nil:
		fmt.Fprintln(w, render.Text(out.JSON))
	default:
		fmt.Fprintln(w, string(out.Body))
	}
}

func printBanner(w io.Writer, p *playground.Playground, listen string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                Postal Pincode API Docs v1.0                  ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Listening:   http://%s\n", listen)
	fmt.Fprintf(w, "Playground:  http://%s/playground\n", listen)
	fmt.Fprintf(w, "Endpoints:   %d\n", len(p.Endpoints()))
	fmt.Fprintf(w, "Environment: %s (%s)\n", p.Session().Environment(), p.Session().BaseURL())
	fmt.Fprintln(w)
}
