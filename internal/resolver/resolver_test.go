package resolver

import (
	"testing"

	"coreupdater/internal/manifest"
	"coreupdater/internal/plugins"
	"coreupdater/internal/version"
)

var testEnv = version.Environment{OSVersion: "14.0", Architecture: "arm64"}

func release(ver string, archs ...string) manifest.Release {
	if len(archs) == 0 {
		archs = []string{"arm64"}
	}
	return manifest.Release{
		Version:       ver,
		URL:           "https://example.com/core-" + ver + ".zip",
		SHA256:        "ab" + ver,
		Architectures: archs,
	}
}

func TestResolveEmitsUpdateForNewerSupportedRelease(t *testing.T) {
	cores := []manifest.Core{{
		ID:       "org.example.foo",
		Name:     "Foo",
		Systems:  []string{"nes"},
		Releases: []manifest.Release{release("1.1"), release("2.0", "x86_64")},
	}}
	installed := []plugins.Installed{{Identifier: "org.Example.Foo", Version: "1.0"}}

	res := Resolve(cores, installed, testEnv, Options{})
	if len(res.Updates) != 1 {
		t.Fatalf("expected one update task, got %d", len(res.Updates))
	}
	task := res.Updates[0]
	if task.Version != "1.1" {
		t.Fatalf("expected update to target 1.1 (2.0 is wrong architecture), got %s", task.Version)
	}
	if !task.HasUpdate || task.CanBeInstalled {
		t.Fatalf("expected update flags, got hasUpdate=%v canBeInstalled=%v", task.HasUpdate, task.CanBeInstalled)
	}
	if len(res.NewCores) != 0 {
		t.Fatalf("expected no new-core tasks, got %d", len(res.NewCores))
	}
}

func TestResolveSkipsUpToDateInstall(t *testing.T) {
	cores := []manifest.Core{{
		ID:       "org.example.foo",
		Name:     "Foo",
		Releases: []manifest.Release{release("1.1")},
	}}
	installed := []plugins.Installed{{Identifier: "org.example.foo", Version: "1.1"}}

	res := Resolve(cores, installed, testEnv, Options{})
	if len(res.Updates) != 0 || len(res.NewCores) != 0 {
		t.Fatalf("expected empty result, got %d updates, %d new", len(res.Updates), len(res.NewCores))
	}
}

func TestResolveEmitsNewCoreTask(t *testing.T) {
	cores := []manifest.Core{{
		ID:       "org.example.bar",
		Name:     "Bar",
		Systems:  []string{"snes"},
		Releases: []manifest.Release{release("1.0"), release("1.2"), release("1.1")},
	}}

	res := Resolve(cores, nil, testEnv, Options{})
	if len(res.NewCores) != 1 {
		t.Fatalf("expected one new-core task, got %d", len(res.NewCores))
	}
	task := res.NewCores[0]
	if task.Version != "1.2" {
		t.Fatalf("expected latest supported release 1.2, got %s", task.Version)
	}
	if task.HasUpdate || !task.CanBeInstalled {
		t.Fatalf("expected new-core flags, got hasUpdate=%v canBeInstalled=%v", task.HasUpdate, task.CanBeInstalled)
	}
}

func TestResolveNeverOffersDeprecatedCoreAsNew(t *testing.T) {
	cores := []manifest.Core{{
		ID:         "org.example.old",
		Name:       "Old",
		Deprecated: true,
		Releases:   []manifest.Release{release("3.0")},
	}}

	res := Resolve(cores, nil, testEnv, Options{})
	if len(res.NewCores) != 0 {
		t.Fatal("deprecated core must never appear in new-core tasks")
	}
}

func TestResolveDeprecatedCoreStillUpdateChecked(t *testing.T) {
	// Asymmetry inherited from the original behavior: an installed deprecated
	// core keeps receiving updates even though it is never offered as new.
	cores := []manifest.Core{{
		ID:         "org.example.old",
		Name:       "Old",
		Deprecated: true,
		Releases:   []manifest.Release{release("3.0")},
	}}
	installed := []plugins.Installed{{Identifier: "org.example.old", Version: "2.0"}}

	res := Resolve(cores, installed, testEnv, Options{})
	if len(res.Updates) != 1 {
		t.Fatalf("expected deprecated-but-installed core to be update-checked, got %d updates", len(res.Updates))
	}
}

func TestResolveExperimentalGating(t *testing.T) {
	cores := []manifest.Core{{
		ID:           "org.example.exp",
		Name:         "Exp",
		Experimental: true,
		Releases:     []manifest.Release{release("0.1")},
	}}

	if res := Resolve(cores, nil, testEnv, Options{}); len(res.NewCores) != 0 {
		t.Fatal("experimental core offered without opt-in")
	}
	if res := Resolve(cores, nil, testEnv, Options{ExperimentalOptIn: true}); len(res.NewCores) != 1 {
		t.Fatal("experimental core not offered with opt-in")
	}
}

func TestResolveSkipsCoreWithoutSupportedRelease(t *testing.T) {
	cores := []manifest.Core{{
		ID:       "org.example.x86only",
		Name:     "X86 Only",
		Releases: []manifest.Release{release("1.0", "x86_64")},
	}}

	if res := Resolve(cores, nil, testEnv, Options{}); len(res.NewCores) != 0 {
		t.Fatal("core without a supported release must be skipped")
	}
}

func TestResolveIgnoresUnknownInstalledPlugin(t *testing.T) {
	installed := []plugins.Installed{{Identifier: "org.example.orphan", Version: "1.0"}}
	res := Resolve(nil, installed, testEnv, Options{})
	if len(res.Updates) != 0 || len(res.NewCores) != 0 {
		t.Fatal("installed plugin without a core entry must be silently skipped")
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	cores := []manifest.Core{
		{ID: "org.example.a", Name: "A", Releases: []manifest.Release{release("1.1")}},
		{ID: "org.example.b", Name: "B", Releases: []manifest.Release{release("2.0")}},
	}
	installed := []plugins.Installed{{Identifier: "org.example.a", Version: "1.0"}}

	first := Resolve(cores, installed, testEnv, Options{})
	second := Resolve(cores, installed, testEnv, Options{})

	if len(first.Updates) != len(second.Updates) || len(first.NewCores) != len(second.NewCores) {
		t.Fatal("resolution passes disagree on task counts")
	}
	for i := range first.Updates {
		a, b := first.Updates[i], second.Updates[i]
		if a.CoreID != b.CoreID || a.URL != b.URL || a.SHA256 != b.SHA256 || a.Version != b.Version {
			t.Fatalf("update task %d differs across passes", i)
		}
	}
	for i := range first.NewCores {
		a, b := first.NewCores[i], second.NewCores[i]
		if a.CoreID != b.CoreID || a.URL != b.URL || a.SHA256 != b.SHA256 || a.Version != b.Version {
			t.Fatalf("new-core task %d differs across passes", i)
		}
	}
}
