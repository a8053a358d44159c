package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AllTales-Labs/getmyancestors/internal/cache"
	"github.com/AllTales-Labs/getmyancestors/internal/config"
	"github.com/AllTales-Labs/getmyancestors/internal/credentials"
	"github.com/AllTales-Labs/getmyancestors/internal/familysearch"
	"github.com/AllTales-Labs/getmyancestors/internal/logging"
	"github.com/AllTales-Labs/getmyancestors/internal/metrics"
	"github.com/AllTales-Labs/getmyancestors/internal/output"
	"github.com/AllTales-Labs/getmyancestors/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// defaultUploadName is the object name used when the document goes to
// stdout.
const defaultUploadName = "tree.ged"

// exitError asks main to exit with code. A nil err means the message was
// already printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// runner holds what a run needs from the process.
type runner struct {
	stdout      io.Writer
	stderr      io.Writer
	interactive bool
	prompter    credentials.Prompter
	newSource   func(cfg familysearch.Config) Source
}

func newRunner(stdout, stderr io.Writer) *runner {
	return &runner{
		stdout:      stdout,
		stderr:      stderr,
		interactive: credentials.Interactive(),
		prompter:    credentials.FormPrompter{},
		newSource: func(cfg familysearch.Config) Source {
			return familysearch.New(cfg)
		},
	}
}

type rootFlags struct {
	configFile  string
	username    string
	password    string
	individuals []string
	ascend      int
	descend     int
	marriage    bool
	verbose     bool
	timeout     int
	outfile     string
	logfile     string
	cacheDir    string
	coordinates bool
	metricsFile string
	traceFile   string
	upload      bool
	check       bool
	force       bool
	clearCache  bool
}

func newRootCommand(r *runner) *cobra.Command {
	var f rootFlags
	cmd := &cobra.Command{
		Use:   "getmyancestors [flags] [ID...]",
		Short: "Download a FamilySearch tree as a GEDCOM file",
		Long: `Download the ancestors and descendants of one or more FamilySearch tree
persons and write them as a GEDCOM 5.5.1 document.

Ids given as arguments are added to the --individuals list. Without any id
the tree person of the logged-in account is used.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd, args)
			if err != nil {
				return err
			}
			_, err = r.run(cmd.Context(), opts)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configFile, "config", "", "YAML settings file")
	flags.StringVarP(&f.username, "username", "u", "", "FamilySearch username (env FS_USERNAME)")
	flags.StringVarP(&f.password, "password", "p", "", "FamilySearch password (env FS_PASSWORD)")
	flags.StringSliceVarP(&f.individuals, "individuals", "i", nil, "tree person ids to start from")
	flags.IntVarP(&f.ascend, "ascend", "a", 4, "generations of ancestors to download")
	flags.IntVarP(&f.descend, "descend", "d", 0, "generations of descendants to download")
	flags.BoolVarP(&f.marriage, "marriage", "m", false, "add spouses and marriage information")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log every step to stderr")
	flags.IntVarP(&f.timeout, "timeout", "t", 60, "request timeout in seconds")
	flags.StringVarP(&f.outfile, "outfile", "o", "", "output GEDCOM file (default stdout)")
	flags.StringVarP(&f.logfile, "logfile", "l", "", "write a JSON log to this file")
	flags.StringVar(&f.cacheDir, "cache-dir", "", "keep API responses in this directory (env FS_CACHE_DIR)")
	flags.BoolVar(&f.coordinates, "coordinates", false, "add place coordinates to facts")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here")
	flags.StringVar(&f.traceFile, "trace-file", "", "write OpenTelemetry spans here as JSON")
	flags.BoolVar(&f.upload, "upload", false, "copy the output to the configured S3 bucket")
	flags.BoolVar(&f.check, "check", false, "only report whether the output file is stale (exit 1 if stale)")
	flags.BoolVar(&f.force, "force", false, "rewrite the output file even if its content is unchanged")
	flags.BoolVar(&f.clearCache, "clear-cache", false, "drop every cached response before downloading")

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", sourceName, version)
		},
	}
}

// options loads the settings file and environment, then applies the flags
// that were set explicitly.
func (f *rootFlags) options(cmd *cobra.Command, args []string) (Options, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return Options{}, err
	}
	changed := cmd.Flags().Changed
	if changed("username") {
		cfg.Username = f.username
	}
	if changed("password") {
		cfg.Password = f.password
	}
	if changed("individuals") || len(args) > 0 {
		cfg.Individuals = append(append([]string(nil), f.individuals...), args...)
	}
	if changed("ascend") {
		cfg.Ascend = f.ascend
	}
	if changed("descend") {
		cfg.Descend = f.descend
	}
	if changed("marriage") {
		cfg.Marriage = f.marriage
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if changed("timeout") {
		cfg.Timeout = time.Duration(f.timeout) * time.Second
	}
	if changed("outfile") {
		cfg.Outfile = f.outfile
	}
	if changed("logfile") {
		cfg.Logfile = f.logfile
	}
	if changed("cache-dir") {
		cfg.CacheDir = f.cacheDir
	}
	if changed("coordinates") {
		cfg.Coordinates = f.coordinates
	}
	if changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if changed("trace-file") {
		cfg.TraceFile = f.traceFile
	}

	seeds, err := NormalizeSeeds(cfg.Individuals)
	if err != nil {
		return Options{}, err
	}
	cfg.Individuals = seeds
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	if f.upload && !cfg.Upload.Enabled() {
		return Options{}, errors.New("--upload needs an S3 bucket in the config file or FS_S3_BUCKET")
	}
	if f.check && output.IsStdout(cfg.Outfile) {
		return Options{}, errors.New("--check needs --outfile")
	}
	if f.clearCache && cfg.CacheDir == "" {
		return Options{}, errors.New("--clear-cache needs --cache-dir or FS_CACHE_DIR")
	}

	opts := DefaultOptions()
	opts.Config = cfg
	opts.ConfigFile = f.configFile
	opts.Check = f.check
	opts.Force = f.force
	opts.ClearCache = f.clearCache
	opts.Upload = f.upload
	return opts, nil
}

// run performs one download. The timing breakdown is printed on stderr
// whether the run succeeds or not.
func (r *runner) run(ctx context.Context, opts Options) (res Result, err error) {
	cfg := opts.Config

	log, closeLog, err := logging.New(logging.Options{
		Verbose: cfg.Verbose,
		Logfile: cfg.Logfile,
		Console: r.stderr,
	})
	if err != nil {
		return res, err
	}
	defer func() { _ = closeLog() }()

	runID := uuid.NewString()
	log = log.With(zap.String("run", runID))

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    sourceName,
		ServiceVersion: opts.Version,
		RunID:          runID,
		TraceFile:      cfg.TraceFile,
	})
	if err != nil {
		return res, err
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.Warn("flush traces", zap.Error(serr))
		}
	}()

	creds, err := credentials.Resolve(ctx, cfg.Username, cfg.Password, r.prompter, r.interactive)
	if err != nil {
		return res, err
	}
	cfg.Password = ""
	opts.Config = cfg

	recorder := metrics.New()
	var respCache familysearch.Cache
	if cfg.CacheDir != "" {
		c, err := cache.Open(cache.Config{Dir: cfg.CacheDir, TTL: cfg.CacheTTL, Logger: log})
		if err != nil {
			return res, err
		}
		defer func() {
			if cerr := c.Close(); cerr != nil {
				log.Warn("close cache", zap.Error(cerr))
			}
		}()
		if opts.ClearCache {
			if err := c.Purge(); err != nil {
				return res, err
			}
			log.Info("cache cleared", zap.String("dir", cfg.CacheDir))
		}
		respCache = c
	}

	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = -1
	}
	src := r.newSource(familysearch.Config{
		Username:          creds.Username,
		Password:          creds.Password,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: rps,
		Logger:            log,
		Cache:             respCache,
		Observer:          recorder,
	})

	engine := NewEngine(src, opts, log, r.stderr, recorder)
	defer func() {
		res.Stats = engine.Stats()
		WriteSummary(r.stderr, res.Stats, err != nil)
		if cfg.MetricsFile != "" {
			if merr := recorder.WriteFile(cfg.MetricsFile); merr != nil {
				log.Warn("write metrics", zap.Error(merr))
			}
		}
	}()

	t, header, err := engine.Build(ctx)
	if err != nil {
		if errors.Is(err, familysearch.ErrLoginFailed) {
			return res, &exitError{code: 2, err: err}
		}
		return res, err
	}

	var doc []byte
	err = engine.timed(phaseSerialize, func() error {
		var rerr error
		doc, res.ContentHash, rerr = Render(t, header)
		return rerr
	})
	if err != nil {
		return res, err
	}

	if opts.Check {
		res.Stale, err = IsStale(cfg.Outfile, res.ContentHash)
		if err != nil {
			return res, err
		}
		if res.Stale {
			fmt.Fprintf(r.stderr, "%s is stale\n", cfg.Outfile)
			return res, &exitError{code: 1}
		}
		fmt.Fprintf(r.stderr, "%s is up to date\n", cfg.Outfile)
		return res, nil
	}

	err = engine.timed(phaseOutput, func() error {
		if opts.Force || output.IsStdout(cfg.Outfile) {
			if gerr := Generate(cfg.Outfile, doc, r.stdout); gerr != nil {
				return gerr
			}
			res.Written = true
		} else {
			written, werr := EnsureUpToDate(cfg.Outfile, doc, res.ContentHash, r.stdout)
			if werr != nil {
				return werr
			}
			res.Written = written
		}
		if opts.Upload {
			key, uerr := upload(ctx, cfg, doc)
			if uerr != nil {
				return uerr
			}
			res.UploadKey = key
			log.Info("uploaded", zap.String("bucket", cfg.Upload.Bucket), zap.String("key", key))
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	if !output.IsStdout(cfg.Outfile) {
		if res.Written {
			fmt.Fprintf(r.stderr, "Generated %s\n", cfg.Outfile)
		} else {
			fmt.Fprintf(r.stderr, "%s is up to date\n", cfg.Outfile)
		}
	}
	return res, nil
}

func upload(ctx context.Context, cfg config.Config, doc []byte) (string, error) {
	u, err := output.NewUploader(output.S3Config{
		Endpoint:  cfg.Upload.Endpoint,
		Region:    cfg.Upload.Region,
		AccessKey: cfg.Upload.AccessKey,
		SecretKey: cfg.Upload.SecretKey,
		Bucket:    cfg.Upload.Bucket,
		Prefix:    cfg.Upload.Prefix,
		UseSSL:    cfg.Upload.UseSSL,
	})
	if err != nil {
		return "", err
	}
	name := defaultUploadName
	if !output.IsStdout(cfg.Outfile) {
		name = filepath.Base(cfg.Outfile)
	}
	return u.Upload(ctx, name, doc)
}
