package discovery

import (
	"regexp"
	"testing"

	"github.com/jmylchreest/optiscope/pkg/schema"
)

// --- FromHTML Tests ---

func TestFromHTML_ScriptTag(t *testing.T) {
	html := `<html><head>
		<script src="https://cdn.optimizely.com/js/24000111222.js"></script>
		<script src="//cdn.optimizely.com/js/24000111222.js"></script>
	</head></html>`

	obs, err := FromHTML(html, "https://shop.example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("expected 1 deduplicated observation, got %d", len(obs))
	}
	if obs[0].Identifier != "24000111222" || obs[0].Via != schema.LoadedViaDirect {
		t.Errorf("unexpected observation %+v", obs[0])
	}
}

func TestFromHTML_ProtocolRelativeResolved(t *testing.T) {
	html := `<script src="//cdn-pci.optimizely.com/js/555.js"></script>`

	obs, _ := FromHTML(html, "https://shop.example.com/cart")
	if len(obs) != 1 || obs[0].ScriptURL != "https://cdn-pci.optimizely.com/js/555.js" {
		t.Errorf("expected resolved script URL, got %+v", obs)
	}
}

func TestFromHTML_TagManagerInline(t *testing.T) {
	html := `<script>
		(function(w,d,s,l,i){w[l].push({'gtm.start':new Date().getTime()});
		var f=d.createElement(s);f.src='https://cdn.optimizely.com/js/777.js';})(window,document,'script','dataLayer','GTM-ABC');
	</script>`

	obs, _ := FromHTML(html, "https://example.com")
	if len(obs) != 1 || obs[0].Via != schema.LoadedViaTagManager {
		t.Errorf("expected tag manager observation, got %+v", obs)
	}
}

func TestFromHTML_OrderPreserved(t *testing.T) {
	html := `<link rel="preload" href="https://cdn.optimizely.com/js/1.js">
		<script src="https://cdn.optimizely.com/js/2.js"></script>`

	obs, _ := FromHTML(html, "https://example.com")
	if len(obs) != 2 || obs[0].Identifier != "1" || obs[1].Identifier != "2" {
		t.Errorf("expected identifiers in document order, got %+v", obs)
	}
}

func TestFromHTML_NoSnippet(t *testing.T) {
	obs, err := FromHTML(`<script src="/app.js"></script>`, "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("expected no observations, got %+v", obs)
	}
}

func TestSelector_CustomPattern(t *testing.T) {
	s := NewSelector(regexp.MustCompile(`snippets/(\d+)\.js`))

	obs, _ := s.FromHTML(`<script src="https://mirror.example.com/snippets/42.js"></script>`, "https://example.com")
	if len(obs) != 1 || obs[0].Identifier != "42" {
		t.Errorf("expected custom pattern match, got %+v", obs)
	}
}

// --- WithRuntime Tests ---

func TestWithRuntime(t *testing.T) {
	direct := []Observation{{Identifier: "1", Via: schema.LoadedViaDirect}}

	if got := WithRuntime(direct, "1", true); len(got) != 1 {
		t.Errorf("already observed id should not be added again, got %+v", got)
	}

	got := WithRuntime(nil, "9", true)
	if len(got) != 1 || got[0].Via != schema.LoadedViaTagManager {
		t.Errorf("expected tag manager injection, got %+v", got)
	}

	got = WithRuntime(nil, "9", false)
	if len(got) != 1 || got[0].Via != "" {
		t.Errorf("expected the load path to be left undecided, got %+v", got)
	}

	if got := WithRuntime(direct, "", true); len(got) != 1 {
		t.Errorf("empty runtime id should be ignored, got %+v", got)
	}
}
