package grpm

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/franckalain/grpmnutrition/internal/models"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"single", "MTHFR", []string{"mthfr"}},
		{"punctuation", "carrier: MTHFR, FTO; (APOE4).", []string{"carrier", "mthfr", "fto", "apoe4"}},
		{"hyphenated marker", "HLA-DQ2 positive", []string{"hla-dq2", "positive"}},
		{"trim joiners", "--LCT__ and -", []string{"lct", "and"}},
		{"duplicates", "mthfr MTHFR Mthfr", []string{"mthfr"}},
		{"newlines", "FTO\nLCT\tVDR", []string{"fto", "lct", "vdr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokens(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tokens(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeItem(t *testing.T) {
	if got := NormalizeItem("  Folate-Rich   GREENS "); got != "folate-rich greens" {
		t.Fatalf("unexpected item %q", got)
	}
}

func TestParseValid(t *testing.T) {
	doc := `{"version":"t1","entries":[
		{"marker":"MTHFR","association":"Folate-rich greens","effect":"beneficial","weight":20},
		{"marker":"fto","association":"fried food","effect":"adverse","weight":15}
	]}`

	idx, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", idx.Len())
	}
	if idx.Degraded() {
		t.Fatal("parsed index must not be degraded")
	}
	if idx.Version() != "t1" {
		t.Errorf("expected version t1, got %q", idx.Version())
	}

	e, ok := idx.Lookup("mthfr")
	if !ok {
		t.Fatal("expected mthfr entry")
	}
	if e.Marker != "MTHFR" || e.AssociationKey() != "folate-rich greens" || e.Effect != models.EffectBeneficial || e.Weight != 20 {
		t.Errorf("unexpected entry %+v", e)
	}

	if _, ok := idx.Lookup("fto"); !ok || idx.Len() != 2 {
		t.Errorf("expected fto entry and 2 rules, got %d", idx.Len())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":          `{`,
		"missing entries":   `{"version":"x"}`,
		"unknown field":     `{"entries":[],"extra":1}`,
		"unknown effect":    `{"entries":[{"marker":"A","association":"b","effect":"great","weight":1}]}`,
		"empty association": `{"entries":[{"marker":"A","association":"  ","effect":"adverse","weight":1}]}`,
		"multi token key":   `{"entries":[{"marker":"two words","association":"b","effect":"adverse","weight":1}]}`,
		"empty marker":      `{"entries":[{"marker":"","association":"b","effect":"adverse","weight":1}]}`,
		"negative weight":   `{"entries":[{"marker":"A","association":"b","effect":"adverse","weight":-1}]}`,
		"duplicate key":     `{"entries":[{"marker":"A","association":"b","effect":"adverse","weight":1},{"marker":"a","association":"c","effect":"neutral","weight":0}]}`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	var loadErr *IndexLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected IndexLoadError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped not-exist error, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"entries":[{"marker":"A"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err = LoadFile(bad)
	if !errors.As(err, &loadErr) || loadErr.Path != bad {
		t.Fatalf("expected IndexLoadError for %s, got %v", bad, err)
	}
}

func TestLoadFileEmbeddedDefault(t *testing.T) {
	idx, err := LoadFile("")
	if err != nil {
		t.Fatalf("expected embedded index to load, got %v", err)
	}
	if idx.Len() == 0 {
		t.Fatal("embedded index is empty")
	}
	if _, ok := idx.Lookup("mthfr"); !ok {
		t.Error("embedded index should contain MTHFR")
	}
}

func TestLoaderLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	doc := `{"entries":[{"marker":"MTHFR","association":"folate-rich greens","effect":"beneficial","weight":20}]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(path, nil)

	var wg sync.WaitGroup
	results := make([]*Index, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := loader.Load()
			if err != nil {
				t.Errorf("load %d: %v", i, err)
			}
			results[i] = idx
		}(i)
	}
	wg.Wait()

	for i, idx := range results {
		if idx != results[0] {
			t.Fatalf("load %d returned a different instance", i)
		}
	}

	// The cached instance survives removal of the resource.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	idx, err := loader.Load()
	if err != nil || idx != results[0] {
		t.Fatalf("expected cached index, got %v, %v", idx, err)
	}
}

func TestLoaderCachesFailure(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.json"), nil)

	idx, err := loader.LoadOrEmpty()
	if err == nil {
		t.Fatal("expected load error")
	}
	if !idx.Degraded() || idx.Len() != 0 {
		t.Fatalf("expected degraded empty index, got len=%d degraded=%v", idx.Len(), idx.Degraded())
	}

	_, err2 := loader.Load()
	if err2 != err {
		t.Errorf("expected cached error, got %v", err2)
	}
}

func TestNilIndexIsDegraded(t *testing.T) {
	var idx *Index
	if !idx.Degraded() || idx.Len() != 0 {
		t.Fatal("nil index should be degraded and empty")
	}
	if _, ok := idx.Lookup("mthfr"); ok {
		t.Fatal("nil index lookup should miss")
	}
}
