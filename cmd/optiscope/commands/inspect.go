package commands

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	clifetcher "github.com/jmylchreest/optiscope/cmd/optiscope/fetcher"
	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/internal/output"
	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/inspector"
	"github.com/jmylchreest/optiscope/pkg/resolver"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Report the experimentation and tracking setup of pages",
	Long: `Fetch pages and report their Optimizely configuration, Shopify state
and GA4 / Tag Manager identifiers.

Static fetching sees markup only. Dynamic fetching renders the page in
Chrome, which adds the live runtime (active experiments, current
variations), analytics network requests and screenshots.

Examples:
  optiscope inspect -u "https://shop.example.com/"

  optiscope inspect -u "https://a.example.com/" -u "https://b.example.com/" \
      --fetch-mode dynamic --format text --running-only

  optiscope inspect -u "https://shop.example.com/" --fetch-mode dynamic \
      --screenshot shot.png`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	flags := inspectCmd.Flags()

	// URL inputs
	flags.StringSliceP("url", "u", nil, "URL(s) to inspect (can be repeated)")

	addOutputFlags(flags)
	addFetchFlags(flags)

	flags.String("screenshot", "", "write the rendered viewport PNG to this file (dynamic mode)")
	flags.Bool("running-only", false, "only report experiments whose status is running or active")
	flags.IntP("concurrency", "c", 4, "pages inspected at once")
}

func runInspect(cmd *cobra.Command, args []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	urls, _ := cmd.Flags().GetStringSlice("url")
	urls = append(urls, args...)
	if len(urls) == 0 {
		return cmd.Help()
	}
	logger.Debug("URLs to inspect", "count", len(urls), "urls", urls)

	screenshotPath, _ := cmd.Flags().GetString("screenshot")
	runningOnly, _ := cmd.Flags().GetBool("running-only")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	insp, err := newInspector(cmd.Flags(),
		inspector.WithScreenshot(screenshotPath != ""),
		inspector.WithConcurrency(concurrency),
	)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer func() { _ = insp.Close() }()

	writer, closeOut, err := openOutput(cmd.Flags())
	if err != nil {
		return err
	}
	defer closeOut()
	defer func() { _ = writer.Close() }()

	logger.Info("starting inspection", "urls", len(urls), "concurrency", concurrency)

	count, errorCount, received := 0, 0, 0
	for report := range insp.InspectMany(ctx, urls) {
		received++
		if report.Error != nil {
			errorCount++
			logger.Error("inspection failed", "url", report.URL, "error", report.Error)
			continue
		}

		if runningOnly {
			report.Optimizely = inspector.RunningOnly(report.Optimizely)
		}
		if screenshotPath != "" && report.Screenshot != "" {
			path := indexedPath(screenshotPath, received, len(urls))
			if err := writeScreenshot(path, report.Screenshot); err != nil {
				logger.Error("failed to write screenshot", "path", path, "error", err)
			} else {
				logInfo("screenshot saved to %s", path)
			}
		}

		if err := writer.Write(report); err != nil {
			logger.Error("failed to write output", "error", err)
			return err
		}
		count++
	}

	logger.Info("inspection complete", "inspected", count, "errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("%d of %d pages failed", errorCount, len(urls))
	}
	return nil
}

// addFetchFlags registers the page fetching flags shared by inspect and serve.
func addFetchFlags(flags *pflag.FlagSet) {
	flags.String("fetch-mode", "static", "fetch mode: static, dynamic")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.Duration("settle", 1500*time.Millisecond, "wait after load before reading the runtime (dynamic mode)")
	flags.String("max-body-size", "10MB", "max response body size (e.g., 512KB, 10MB)")
	flags.String("user-agent", "", "override the browser user agent")
	flags.String("chrome-path", "", "Chrome executable (dynamic mode; auto-detected when empty)")
}

// addOutputFlags registers the output flags shared by inspect and resolve.
func addOutputFlags(flags *pflag.FlagSet) {
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.StringP("format", "f", "json", "output format: json, jsonl, yaml, text")
	flags.Bool("compact", false, "disable JSON indentation")
}

// newInspector builds an Inspector from the fetch flags, which may be absent
// for commands that never fetch pages.
func newInspector(flags *pflag.FlagSet, extra ...inspector.Option) (*inspector.Inspector, error) {
	opts := []inspector.Option{
		inspector.WithCredential(viper.GetString("api_token")),
		inspector.WithResolverOptions(resolverOptions()...),
	}

	if flags.Lookup("fetch-mode") != nil {
		fetchOpts, err := fetchOptions(flags)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fetchOpts...)
	}

	return inspector.New(append(opts, extra...)...)
}

func resolverOptions() []resolver.Option {
	var opts []resolver.Option
	if viper.IsSet("known_identifier") {
		opts = append(opts, resolver.WithKnownIdentifier(strings.TrimSpace(viper.GetString("known_identifier"))))
	}
	return opts
}

func fetchOptions(flags *pflag.FlagSet) ([]inspector.Option, error) {
	fetchMode, _ := flags.GetString("fetch-mode")
	timeout, _ := flags.GetDuration("timeout")
	settle, _ := flags.GetDuration("settle")
	userAgent, _ := flags.GetString("user-agent")
	chromePath, _ := flags.GetString("chrome-path")
	logger.Debug("fetch settings", "mode", fetchMode, "timeout", timeout, "settle", settle)

	maxBodySizeStr, _ := flags.GetString("max-body-size")
	var maxBodySize int
	if s := strings.TrimSpace(maxBodySizeStr); s != "" && s != "0" {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			logger.Error("invalid max-body-size", "value", maxBodySizeStr, "error", err)
			return nil, err
		}
		maxBodySize = int(n)
	}

	opts := []inspector.Option{
		inspector.WithTimeout(timeout),
		inspector.WithSettle(settle),
		inspector.WithMaxBodySize(maxBodySize),
	}
	if userAgent != "" {
		opts = append(opts, inspector.WithUserAgent(userAgent))
	}

	var f fetcher.Fetcher
	switch fetchMode {
	case "dynamic":
		cfg := clifetcher.DefaultConfig()
		cfg.Timeout = timeout
		cfg.Settle = settle
		cfg.ChromePath = chromePath
		if userAgent != "" {
			cfg.UserAgent = userAgent
		}
		df, err := clifetcher.NewDynamicFetcher(cfg)
		if err != nil {
			logger.Error("failed to create dynamic fetcher", "error", err)
			return nil, err
		}
		f = df
	case "static", "":
		f = fetcher.NewStatic(fetcher.StaticConfig{
			UserAgent:   userAgent,
			Timeout:     timeout,
			MaxBodySize: maxBodySize,
		})
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s (use 'static' or 'dynamic')", fetchMode)
	}
	// Note: fetchers are closed by Inspector.Close()

	return append(opts, inspector.WithFetcher(f)), nil
}

// openOutput creates the report writer. The returned func closes the output
// file and must run after the writer has been closed.
func openOutput(flags *pflag.FlagSet) (output.Writer, func(), error) {
	formatStr, _ := flags.GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return nil, nil, err
	}

	outFile := os.Stdout
	closeOut := func() {}
	if outPath, _ := flags.GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return nil, nil, err
		}
		outFile = f
		closeOut = func() { _ = f.Close() }
	}

	compact, _ := flags.GetBool("compact")
	writer, err := output.NewWriter(outFile, format, output.WithCompact(compact))
	if err != nil {
		closeOut()
		logger.Error("failed to create output writer", "format", formatStr, "error", err)
		return nil, nil, err
	}
	return writer, closeOut, nil
}

var errNotPNGDataURL = errors.New("screenshot is not a PNG data URL")

func writeScreenshot(path, dataURL string) error {
	encoded, ok := strings.CutPrefix(dataURL, "data:image/png;base64,")
	if !ok {
		return errNotPNGDataURL
	}
	png, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return err
	}
	logger.Debug("screenshot written", "path", path, "size", humanize.Bytes(uint64(len(png))))
	return nil
}

// indexedPath numbers the file when several pages share one path:
// shot.png becomes shot-1.png, shot-2.png and so on in completion order.
func indexedPath(path string, i, n int) string {
	if n <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), i, ext)
}
