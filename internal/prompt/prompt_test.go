package prompt

import (
	"strings"
	"testing"

	"github.com/reva-dev/reva/internal/model"
)

func testItem() *model.Item {
	return &model.Item{
		Owner:   "acme",
		Repo:    "api",
		Number:  7,
		Title:   "Add retry logic",
		Author:  "jsmith",
		BaseRef: "main",
		HeadRef: "retry",
		Diff:    "@@ -1,1 +1,2 @@\n old\n+new\n",
	}
}

func TestBuildIncludesItemFields(t *testing.T) {
	b, err := NewBuilder(nil, "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := b.Build(testItem())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, want := range []string{"acme/api", "Add retry logic", "jsmith", "+new"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildAppendsAddonsAndContext(t *testing.T) {
	b, err := NewBuilder([]string{"security", "tests"}, "This service is latency sensitive.")
	if err != nil {
		t.Fatal(err)
	}

	got, err := b.Build(testItem())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	secIdx := strings.Index(got, "Focus: security")
	testsIdx := strings.Index(got, "Focus: tests")
	ctxIdx := strings.Index(got, "latency sensitive")

	if secIdx < 0 || testsIdx < 0 || ctxIdx < 0 {
		t.Fatalf("prompt missing sections: sec=%d tests=%d ctx=%d", secIdx, testsIdx, ctxIdx)
	}
	if !(secIdx < testsIdx && testsIdx < ctxIdx) {
		t.Error("sections out of order: base, add-ons, persistent context")
	}
}

func TestNewBuilderRejectsUnknownAddon(t *testing.T) {
	if _, err := NewBuilder([]string{"vibes"}, ""); err == nil {
		t.Error("expected error for unknown add-on")
	}
}
