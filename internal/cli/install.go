package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"coreupdater/internal/coordinator"
	"coreupdater/internal/download"
	"coreupdater/internal/plugins"
	"coreupdater/internal/tui"
)

var (
	installSystem string
	installYes    bool
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [core-id]",
		Short: "Download, verify and install a core",
		Long: `Install downloads the selected release, verifies its checksum and
installs the extracted bundle into the cores directory. Select a core
either directly by identifier or by system with --system, in which case
the persisted default core for that system wins.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInstall,
	}

	cmd.Flags().StringVar(&installSystem, "system", "", "Select the core by supported system identifier")
	cmd.Flags().BoolVar(&installYes, "yes", false, "Skip the confirmation prompt")

	return cmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	app.logf("install started")

	status := tui.NewStatusWriter(cmd.ErrOrStderr())
	status.Update("Fetching release catalog...")
	if _, err := app.coord.CheckForUpdates(ctx); err != nil {
		status.Stop()
		return err
	}
	status.Stop()

	task, err := selectTask(app, args)
	if err != nil {
		return err
	}

	mode := tui.DetectMode(cmd.OutOrStdout(), noProgress, outputJSON)
	if err := confirmInstall(cmd, task, mode); err != nil {
		return err
	}

	app.logf("install confirmed core=%s version=%s", task.CoreID, task.Version)
	outcome := driveInstall(ctx, cmd, app, task, mode)

	if outputJSON {
		if err := writeInstallJSON(cmd.OutOrStdout(), task, outcome); err != nil {
			return err
		}
	}
	return outcome
}

func selectTask(app *app, args []string) (*download.Task, error) {
	switch {
	case installSystem != "" && len(args) > 0:
		return nil, fmt.Errorf("pass either a core identifier or --system, not both")
	case installSystem != "":
		return app.coord.SelectForSystem(installSystem)
	case len(args) == 1:
		task, ok := app.coord.Task(args[0])
		if !ok {
			return nil, coordinator.ErrCoreNotAvailable
		}
		return task, nil
	default:
		return nil, fmt.Errorf("pass a core identifier or --system")
	}
}

func confirmInstall(cmd *cobra.Command, task *download.Task, mode tui.OutputMode) error {
	if installYes {
		return nil
	}
	if mode != tui.ModeTUI {
		return fmt.Errorf("confirmation required; pass --yes to install %s %s", task.Name, task.Version)
	}

	prompt := fmt.Sprintf("Install %s %s?", task.Name, task.Version)
	if task.HasUpdate {
		prompt = fmt.Sprintf("Update %s to %s?", task.Name, task.Version)
	}
	ok, err := tui.RunConfirm(cmd.OutOrStdout(), prompt)
	if err != nil {
		return err
	}
	if !ok {
		return coordinator.ErrUserCancelled
	}
	return nil
}

// driveInstall starts the foreground transfer and blocks until its terminal
// event, relaying progress in the requested output mode.
func driveInstall(ctx context.Context, cmd *cobra.Command, app *app, task *download.Task, mode tui.OutputMode) error {
	done := make(chan error, 1)

	if mode == tui.ModeTUI {
		model := tui.NewProgressModel("install", tui.InstallColumns())
		model.AddRow(task.CoreID, []string{task.Name, task.Version, "-", "pending"})

		var outcome error
		runErr := tui.RunWithWork(cmd.OutOrStdout(), model, func(send func(msg tui.Msg)) {
			app.presenter.set(&donePresenter{
				Presenter: tui.NewTaskReporter(send),
				done:      done,
			})
			if _, err := app.coord.InstallForSavedState(ctx, task.CoreID); err != nil {
				outcome = err
				return
			}
			outcome = <-done
		})
		if runErr != nil {
			return runErr
		}
		return outcome
	}

	var inner coordinator.Presenter
	if mode == tui.ModePlain {
		inner = &plainPresenter{out: cmd.OutOrStdout()}
	}
	app.presenter.set(&donePresenter{Presenter: inner, done: done})
	if _, err := app.coord.InstallForSavedState(ctx, task.CoreID); err != nil {
		return err
	}
	return <-done
}

func writeInstallJSON(out io.Writer, task *download.Task, outcome error) error {
	payload := struct {
		Core    string `json:"core"`
		Name    string `json:"name"`
		Version string `json:"version"`
		State   string `json:"state"`
		Error   string `json:"error,omitempty"`
	}{
		Core:    task.CoreID,
		Name:    task.Name,
		Version: task.Version,
		State:   string(task.State()),
	}
	if outcome != nil {
		payload.Error = outcome.Error()
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode install json: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// donePresenter forwards to an optional inner presenter and resolves the done
// channel on the terminal event.
type donePresenter struct {
	Presenter coordinator.Presenter
	done      chan error
}

func (p *donePresenter) InstallStarted(task *download.Task) {
	if p.Presenter != nil {
		p.Presenter.InstallStarted(task)
	}
}

func (p *donePresenter) InstallProgress(task *download.Task, fraction float64) {
	if p.Presenter != nil {
		p.Presenter.InstallProgress(task, fraction)
	}
}

func (p *donePresenter) InstallFinished(task *download.Task, handle plugins.Handle) {
	if p.Presenter != nil {
		p.Presenter.InstallFinished(task, handle)
	}
	p.done <- nil
}

func (p *donePresenter) InstallFailed(task *download.Task, err error) {
	if p.Presenter != nil {
		p.Presenter.InstallFailed(task, err)
	}
	p.done <- err
}

// plainPresenter prints one line per lifecycle step for non-interactive runs.
type plainPresenter struct {
	out io.Writer
}

func (p *plainPresenter) InstallStarted(task *download.Task) {
	fmt.Fprintf(p.out, "downloading %s %s\n", task.Name, task.Version)
}

func (p *plainPresenter) InstallProgress(*download.Task, float64) {}

func (p *plainPresenter) InstallFinished(task *download.Task, handle plugins.Handle) {
	fmt.Fprintf(p.out, "installed %s %s\n", task.Name, handle.Version)
}

func (p *plainPresenter) InstallFailed(task *download.Task, err error) {
	status := "failed"
	if errors.Is(err, download.ErrCancelled) {
		status = "cancelled"
	}
	fmt.Fprintf(p.out, "%s %s: %v\n", status, task.Name, err)
}
