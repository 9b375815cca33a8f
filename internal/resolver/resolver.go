// Package resolver reconciles the manifest snapshot against the installed
// plugin set, producing the download tasks the coordinator offers to the UI.
package resolver

import (
	"strings"

	"coreupdater/internal/download"
	"coreupdater/internal/manifest"
	"coreupdater/internal/plugins"
	"coreupdater/internal/version"
)

// Options controls which catalog entries are eligible.
type Options struct {
	// ExperimentalOptIn offers cores flagged experimental as new installs.
	ExperimentalOptIn bool
	// TaskConfig is copied into every emitted task.
	TaskConfig download.Config
}

// Result holds the two task sets a resolution pass produces. Tasks in Updates
// carry HasUpdate; tasks in NewCores carry CanBeInstalled.
type Result struct {
	Updates  []*download.Task
	NewCores []*download.Task
}

// Resolve is a pure function of (cores, installed, env, opts): running it
// twice with unchanged inputs yields structurally identical task sets. The
// returned tasks are fresh idle descriptors; callers rebuild their UI-facing
// collection from them rather than patching a previous pass.
func Resolve(cores []manifest.Core, installed []plugins.Installed, env version.Environment, opts Options) Result {
	var res Result

	byIdentifier := make(map[string]plugins.Installed, len(installed))
	for _, plugin := range installed {
		byIdentifier[strings.ToLower(plugin.Identifier)] = plugin
	}

	for _, core := range cores {
		plugin, isInstalled := byIdentifier[core.Identifier()]
		if isInstalled {
			// Deprecated cores stay update-checkable once installed even
			// though they are never offered as new installs.
			if task := updateTask(core, plugin, env, opts); task != nil {
				res.Updates = append(res.Updates, task)
			}
			continue
		}

		if core.Deprecated {
			continue
		}
		if core.Experimental && !opts.ExperimentalOptIn {
			continue
		}
		rel, ok := manifest.LatestSupportedRelease(core, env)
		if !ok {
			continue
		}
		task := newTask(core, rel, opts)
		task.CanBeInstalled = true
		res.NewCores = append(res.NewCores, task)
	}

	return res
}

// updateTask returns an update task when the core has a supported release
// strictly newer than the installed version, carrying the latest such
// release. Installed plugins without a matching core entry never reach here;
// they are simply not update-checked.
func updateTask(core manifest.Core, plugin plugins.Installed, env version.Environment, opts Options) *download.Task {
	rel, ok := manifest.LatestSupportedRelease(core, env)
	if !ok {
		return nil
	}
	if version.Compare(rel.Version, plugin.Version) <= 0 {
		return nil
	}
	task := newTask(core, rel, opts)
	task.HasUpdate = true
	return task
}

func newTask(core manifest.Core, rel manifest.Release, opts Options) *download.Task {
	task := download.New(opts.TaskConfig)
	task.CoreID = core.Identifier()
	task.Name = core.Name
	task.Systems = append([]string(nil), core.Systems...)
	task.Version = rel.Version
	task.URL = rel.URL
	task.SHA256 = rel.SHA256
	return task
}
