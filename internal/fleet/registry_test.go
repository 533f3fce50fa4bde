package fleet

import (
	"testing"

	"github.com/oio/domestic-ai/internal/testutil/testlog"
)

func TestRegistryPreservesOrder(t *testing.T) {
	testlog.Start(t)

	registry := NewRegistry()
	for _, name := range []string{"ollama", "api", "tools", "bot"} {
		registry.Register(&Unit{Name: name})
	}

	names := registry.Names()
	want := []string{"ollama", "api", "tools", "bot"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order mismatch at %d: want %s got %s", i, want[i], names[i])
		}
	}
}

func TestRegistryReRegisterKeepsPosition(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&Unit{Name: "api", Port: 8000})
	registry.Register(&Unit{Name: "bot"})
	registry.Register(&Unit{Name: "api", Port: 8001})

	names := registry.Names()
	if len(names) != 2 || names[0] != "api" {
		t.Fatalf("re-register must keep position, got %v", names)
	}
	u, ok := registry.Get("api")
	if !ok || u.Port != 8001 {
		t.Fatalf("re-register must replace unit, got %+v", u)
	}
}

func TestRegistrySnapshotSemantics(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&Unit{Name: "api"})

	names := registry.Names()
	names[0] = "mutated"
	if _, ok := registry.Get("api"); !ok {
		t.Fatalf("registry affected by snapshot mutation")
	}
}
