package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/jmylchreest/optiscope/pkg/inspector"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

// --- Command Tests ---

func TestForceCommand(t *testing.T) {
	out, err := execute(t, "force", "https://shop.example.com/p", "123", "456")
	if err != nil {
		t.Fatalf("force: %v", err)
	}
	if strings.TrimSpace(out) != "https://shop.example.com/p?optimizely_x123=456" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestForceCommand_RejectsBadURL(t *testing.T) {
	_, err := execute(t, "force", "ftp://example.com", "1", "2")
	if !errors.Is(err, inspector.ErrProtocolNotAllowed) {
		t.Errorf("expected ErrProtocolNotAllowed, got %v", err)
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, `"goVersion"`) {
		t.Errorf("expected JSON build info, got %q", out)
	}
}

// --- Flag Helper Tests ---

func fetchFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addFetchFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestFetchOptions_UnknownMode(t *testing.T) {
	_, err := fetchOptions(fetchFlagSet(t, "--fetch-mode", "headful"))
	if err == nil || !strings.Contains(err.Error(), "unknown fetch mode") {
		t.Errorf("expected unknown fetch mode error, got %v", err)
	}
}

func TestFetchOptions_InvalidBodySize(t *testing.T) {
	if _, err := fetchOptions(fetchFlagSet(t, "--max-body-size", "lots")); err == nil {
		t.Error("expected error for unparseable size")
	}
}

func TestFetchOptions_Static(t *testing.T) {
	opts, err := fetchOptions(fetchFlagSet(t, "--max-body-size", "2MB", "--timeout", "5s"))
	if err != nil {
		t.Fatalf("fetchOptions: %v", err)
	}
	cfg := inspector.DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.MaxBodySize != 2_000_000 {
		t.Errorf("expected 2MB parsed as 2000000, got %d", cfg.MaxBodySize)
	}
	if cfg.Fetcher == nil || cfg.Fetcher.Type() != "static" {
		t.Errorf("expected a static fetcher, got %v", cfg.Fetcher)
	}
}

func TestNewInspector_WithoutFetchFlags(t *testing.T) {
	fs := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
	insp, err := newInspector(fs)
	if err != nil {
		t.Fatalf("newInspector: %v", err)
	}
	_ = insp.Close()
}

// --- Screenshot Tests ---

func TestIndexedPath(t *testing.T) {
	if got := indexedPath("shot.png", 1, 1); got != "shot.png" {
		t.Errorf("single page should keep the path, got %q", got)
	}
	if got := indexedPath("out/shot.png", 2, 3); got != "out/shot-2.png" {
		t.Errorf("unexpected indexed path %q", got)
	}
}

func TestWriteScreenshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")

	if err := writeScreenshot(path, "data:image/png;base64,iVBORw0K"); err != nil {
		t.Fatalf("writeScreenshot: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("expected PNG signature, got %x", data)
	}

	if err := writeScreenshot(path, "data:image/jpeg;base64,AAAA"); !errors.Is(err, errNotPNGDataURL) {
		t.Errorf("expected errNotPNGDataURL, got %v", err)
	}
}
