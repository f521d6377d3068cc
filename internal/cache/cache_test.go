package cache

import (
	"testing"

	"github.com/voltbench/ocpp-sim/internal/domain"
	"github.com/voltbench/ocpp-sim/internal/template"
)

func TestInitIsIdempotent(t *testing.T) {
	Teardown()
	t.Cleanup(Teardown)

	a, err := Init(8)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	b, err := Init(16)
	if err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if a != b {
		t.Error("Init must return the existing instance")
	}
	if Get() != a {
		t.Error("Get must return the initialized instance")
	}
}

func TestGetInitializesOnDemand(t *testing.T) {
	Teardown()
	t.Cleanup(Teardown)

	c := Get()
	if c == nil {
		t.Fatal("Get must lazily initialize")
	}
	if Get() != c {
		t.Error("lazy instance must be stable")
	}
}

func TestTemplateAndConfigurationRoundTrip(t *testing.T) {
	Teardown()
	t.Cleanup(Teardown)
	c := Get()

	tpl := &template.Template{BaseName: "cs-test"}
	c.SetTemplate("hash-1", tpl)
	got, ok := c.GetTemplate("hash-1")
	if !ok || got.BaseName != "cs-test" {
		t.Errorf("template round trip failed: %v %v", got, ok)
	}
	if _, ok := c.GetTemplate("hash-2"); ok {
		t.Error("unknown hash must miss")
	}

	cfg := &domain.StationConfiguration{
		StationInfo: domain.StationInfo{HashId: "abc", Name: "cs-test-000001"},
	}
	c.SetConfiguration("abc", cfg)
	gotCfg, ok := c.GetConfiguration("abc")
	if !ok || gotCfg.StationInfo.Name != "cs-test-000001" {
		t.Errorf("configuration round trip failed: %v %v", gotCfg, ok)
	}

	c.DeleteConfiguration("abc")
	if _, ok := c.GetConfiguration("abc"); ok {
		t.Error("deleted configuration must miss")
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	Teardown()
	t.Cleanup(Teardown)

	c, err := Init(2)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	c.SetTemplate("one", &template.Template{BaseName: "one"})
	c.SetTemplate("two", &template.Template{BaseName: "two"})
	c.SetTemplate("three", &template.Template{BaseName: "three"})

	if _, ok := c.GetTemplate("one"); ok {
		t.Error("oldest entry must be evicted at capacity")
	}
	if _, ok := c.GetTemplate("three"); !ok {
		t.Error("newest entry must survive")
	}
}

func TestTeardownDropsState(t *testing.T) {
	Teardown()
	c := Get()
	c.SetTemplate("hash-1", &template.Template{BaseName: "cs-test"})
	Teardown()

	fresh := Get()
	t.Cleanup(Teardown)
	if _, ok := fresh.GetTemplate("hash-1"); ok {
		t.Error("Teardown must drop cached entries")
	}
}
