package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/fcrepo"
	"pkt.systems/pslog"
)

const (
	baseURLKey       = "client.base_url"
	usernameKey      = "client.username"
	passwordKey      = "client.password"
	authHostKey      = "client.auth_host"
	acceptKey        = "client.accept"
	contentTypeKey   = "client.content_type"
	metadataKey      = "client.metadata"
	fixityKey        = "client.fixity"
	preferIncludeKey = "client.prefer_include"
	preferOmitKey    = "client.prefer_omit"
	failOnErrorKey   = "client.fail_on_error"
	timeoutKey       = "client.timeout"
	otelKey          = "client.otel"
	logLevelKey      = "client.log_level"
	logOutputKey     = "client.log_output"
)

func submain(ctx context.Context) int {
	cmd := newRootCommand()
	ctx = withSignalCancel(ctx)
	if _, err := cmd.ExecuteContextC(ctx); err != nil {
		if err != context.Canceled {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	cfg := &cliConfig{}
	var verbose bool
	cmd := &cobra.Command{
		Use:           "fcrepo",
		Short:         "Interact with a Fedora Commons style repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			cfg.cleanup()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("base-url", "http://127.0.0.1:8080/rest", "repository base URL")
	flags.String("username", "", "basic-auth username")
	flags.String("password", "", "basic-auth password")
	flags.String("auth-host", "", "host the credentials are scoped to (default derived from base URL)")
	flags.String("accept", "", "fixed Accept value for retrievals")
	flags.String("content-type", "", "fixed Content-Type for request entities")
	flags.Bool("metadata", true, "resolve metadata documents via describedby discovery")
	flags.Bool("fixity", false, "target the fixity-check endpoint on retrievals")
	flags.StringSlice("prefer-include", nil, "Prefer include tokens (short names expand)")
	flags.StringSlice("prefer-omit", nil, "Prefer omit tokens (short names expand)")
	flags.Bool("fail-on-error", true, "treat invalid responses and transport failures as errors")
	flags.Duration("timeout", 30*time.Second, "HTTP client timeout")
	flags.Bool("otel", false, "instrument the HTTP transport with OpenTelemetry")
	flags.String("log-level", "none", "log level (trace|debug|info|warn|error|none)")
	flags.String("log-output", "", "log output path (default stderr)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose (trace) logging")

	mustBindFlag(baseURLKey, "FCREPO_BASE_URL", flags.Lookup("base-url"))
	mustBindFlag(usernameKey, "FCREPO_USERNAME", flags.Lookup("username"))
	mustBindFlag(passwordKey, "FCREPO_PASSWORD", flags.Lookup("password"))
	mustBindFlag(authHostKey, "FCREPO_AUTH_HOST", flags.Lookup("auth-host"))
	mustBindFlag(acceptKey, "FCREPO_ACCEPT", flags.Lookup("accept"))
	mustBindFlag(contentTypeKey, "FCREPO_CONTENT_TYPE", flags.Lookup("content-type"))
	mustBindFlag(metadataKey, "FCREPO_METADATA", flags.Lookup("metadata"))
	mustBindFlag(fixityKey, "FCREPO_FIXITY", flags.Lookup("fixity"))
	mustBindFlag(preferIncludeKey, "FCREPO_PREFER_INCLUDE", flags.Lookup("prefer-include"))
	mustBindFlag(preferOmitKey, "FCREPO_PREFER_OMIT", flags.Lookup("prefer-omit"))
	mustBindFlag(failOnErrorKey, "FCREPO_FAIL_ON_ERROR", flags.Lookup("fail-on-error"))
	mustBindFlag(timeoutKey, "FCREPO_TIMEOUT", flags.Lookup("timeout"))
	mustBindFlag(otelKey, "FCREPO_OTEL", flags.Lookup("otel"))
	mustBindFlag(logLevelKey, "FCREPO_LOG_LEVEL", flags.Lookup("log-level"))
	mustBindFlag(logOutputKey, "FCREPO_LOG_OUTPUT", flags.Lookup("log-output"))

	cfg.verboseFlag = &verbose

	cmd.AddCommand(
		newGetCommand(cfg),
		newHeadCommand(cfg),
		newPutCommand(cfg),
		newPostCommand(cfg),
		newPatchCommand(cfg),
		newDeleteCommand(cfg),
		newTxCommand(cfg),
	)

	return cmd
}

func mustBindFlag(key, env string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	if env != "" {
		if err := viper.BindEnv(key, env); err != nil {
			panic(err)
		}
	}
}

type cliConfig struct {
	loaded        bool
	baseURL       string
	username      string
	password      string
	authHost      string
	accept        string
	contentType   string
	metadata      bool
	fixity        bool
	preferInclude []string
	preferOmit    []string
	failOnError   bool
	timeout       time.Duration
	otel          bool
	logLevel      string
	logOutput     string
	logger        pslog.Base
	logClosers    []io.Closer
	loggerReady   bool
	verboseFlag   *bool
	cachedClient  *fcrepo.Client
	cachedTxn     *fcrepo.TransactionManager
}

func (c *cliConfig) load() error {
	if c.loaded {
		return nil
	}
	c.baseURL = strings.TrimSpace(viper.GetString(baseURLKey))
	if c.baseURL == "" {
		return fmt.Errorf("base URL required (specify --base-url or export FCREPO_BASE_URL)")
	}
	c.username = viper.GetString(usernameKey)
	c.password = viper.GetString(passwordKey)
	c.authHost = viper.GetString(authHostKey)
	c.accept = viper.GetString(acceptKey)
	c.contentType = viper.GetString(contentTypeKey)
	c.metadata = viper.GetBool(metadataKey)
	if !viper.IsSet(metadataKey) {
		c.metadata = true
	}
	c.fixity = viper.GetBool(fixityKey)
	c.preferInclude = viper.GetStringSlice(preferIncludeKey)
	c.preferOmit = viper.GetStringSlice(preferOmitKey)
	c.failOnError = viper.GetBool(failOnErrorKey)
	if !viper.IsSet(failOnErrorKey) {
		c.failOnError = true
	}
	c.timeout = viper.GetDuration(timeoutKey)
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	c.otel = viper.GetBool(otelKey)
	c.logOutput = viper.GetString(logOutputKey)
	c.logLevel = strings.TrimSpace(viper.GetString(logLevelKey))
	if c.verboseFlag != nil && *c.verboseFlag {
		c.logLevel = "trace"
	}
	if err := c.setupLogger(); err != nil {
		return err
	}
	c.loaded = true
	return nil
}

func (c *cliConfig) setupLogger() error {
	if c.loggerReady {
		return nil
	}
	levelStr := strings.TrimSpace(strings.ToLower(c.logLevel))
	if levelStr == "" {
		levelStr = "none"
	}
	if levelStr == "none" || levelStr == "disabled" || levelStr == "off" {
		c.logger = nil
		c.loggerReady = true
		return nil
	}
	level, ok := pslog.ParseLevel(levelStr)
	if !ok {
		return fmt.Errorf("invalid log level %q", c.logLevel)
	}
	if level == pslog.NoLevel || level == pslog.Disabled {
		c.logger = nil
		c.loggerReady = true
		return nil
	}
	var writer io.Writer = os.Stderr
	switch c.logOutput {
	case "", "stderr":
	case "-", "stdout":
		writer = os.Stdout
	default:
		f, err := os.OpenFile(c.logOutput, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		c.logClosers = append(c.logClosers, f)
		writer = f
	}
	c.logger = pslog.NewStructured(writer).With("app", "fcrepo").LogLevel(level)
	c.loggerReady = true
	return nil
}

func (c *cliConfig) cleanup() {
	for _, closer := range c.logClosers {
		_ = closer.Close()
	}
	c.logClosers = nil
	c.logger = nil
	c.loggerReady = false
	c.loaded = false
	c.cachedClient = nil
	c.cachedTxn = nil
}

func (c *cliConfig) txnManager() (*fcrepo.TransactionManager, error) {
	if c.cachedTxn != nil {
		return c.cachedTxn, nil
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	opts := []fcrepo.TxnOption{fcrepo.WithTxnHTTPTimeout(c.timeout)}
	if c.logger != nil {
		opts = append(opts, fcrepo.WithTxnLogger(c.logger))
	}
	if c.username != "" {
		opts = append(opts, fcrepo.WithTxnAuth(c.username, c.password))
		if c.authHost != "" {
			opts = append(opts, fcrepo.WithTxnAuthHost(c.authHost))
		}
	}
	if c.otel {
		opts = append(opts, fcrepo.WithTxnTracedTransport())
	}
	tm, err := fcrepo.NewTransactionManager(c.baseURL, opts...)
	if err != nil {
		return nil, err
	}
	c.cachedTxn = tm
	return tm, nil
}

func (c *cliConfig) client() (*fcrepo.Client, error) {
	if c.cachedClient != nil {
		return c.cachedClient, nil
	}
	tm, err := c.txnManager()
	if err != nil {
		return nil, err
	}
	opts := []fcrepo.Option{
		fcrepo.WithTransactionManager(tm),
		fcrepo.WithMetadata(c.metadata),
		fcrepo.WithFixityCheck(c.fixity),
		fcrepo.WithFailOnError(c.failOnError),
		fcrepo.WithHTTPTimeout(c.timeout),
	}
	if c.logger != nil {
		opts = append(opts, fcrepo.WithLogger(c.logger))
	}
	if c.accept != "" {
		opts = append(opts, fcrepo.WithAccept(c.accept))
	}
	if c.contentType != "" {
		opts = append(opts, fcrepo.WithContentType(c.contentType))
	}
	if len(c.preferInclude) > 0 {
		opts = append(opts, fcrepo.WithPreferInclude(c.preferInclude...))
	}
	if len(c.preferOmit) > 0 {
		opts = append(opts, fcrepo.WithPreferOmit(c.preferOmit...))
	}
	if c.username != "" {
		opts = append(opts, fcrepo.WithAuth(c.username, c.password))
		if c.authHost != "" {
			opts = append(opts, fcrepo.WithAuthHost(c.authHost))
		}
	}
	if c.otel {
		opts = append(opts, fcrepo.WithTracedTransport())
	}
	cli, err := fcrepo.New(c.baseURL, opts...)
	if err != nil {
		return nil, err
	}
	c.cachedClient = cli
	return cli, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fcrepo.WithCorrelationID(ctx, fcrepo.GenerateCorrelationID())
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
