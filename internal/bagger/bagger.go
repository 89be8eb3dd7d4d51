// Package bagger implements the Integration/Bagger Driver (spec.md §4.8):
// the pipeline hands off a finished preservation package to an external
// bagging tool and records its pass/fail outcome. Two concrete drivers are
// provided, selected per SPEC_FULL.md §4.8a: ExecDriver shells out to a
// configured command (the original's DART executable, ported from
// original_source/bagger/job.py's Popen-with-JSON-on-stdin contract), and
// InProcessDriver handles the literal "Bagger" selector by tarring and
// uploading the package itself, adapted from
// pkg/caryatid/vagrant_box.go's archive/tar use and
// pkg/caryatid/backend_s3.go's aws-sdk-go upload path.
package bagger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Status is the bagging outcome, numbered per original_source/bagger/__init__.py's
// Status IntEnum so log lines and exit codes stay recognizable against the
// original tool's conventions.
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusInvalidPath
	StatusDuplicateBag
	StatusInvalidPackage
	StatusWasabiError
	StatusInvalidConfig
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusError:
		return "ERROR"
	case StatusInvalidPath:
		return "INVALID_PATH"
	case StatusDuplicateBag:
		return "DUPLICATE_BAG"
	case StatusInvalidPackage:
		return "INVALID_PACKAGE"
	case StatusWasabiError:
		return "WASABI_ERROR"
	case StatusInvalidConfig:
		return "INVALID_CONFIG"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Tag is one bag-info/tag-file entry, mirroring job.py's add_tag.
type Tag struct {
	TagFile string `json:"tagFile"`
	TagName string `json:"tagName"`
	Value   string `json:"value"`
}

// Job describes one package to hand off to a driver.
type Job struct {
	PackagePath string   // absolute path to the vNN directory to bag
	BagName     string   // final bag name (bagname.Format output)
	Files       []string // files/directories to include, in order
	Tags        []Tag
}

func (j Job) toJSON() ([]byte, error) {
	return json.Marshal(struct {
		PackageName string   `json:"packageName"`
		Files       []string `json:"files"`
		Tags        []Tag    `json:"tags"`
	}{
		PackageName: j.BagName,
		Files:       j.Files,
		Tags:        j.Tags,
	})
}

// Result is a driver's outcome for one Job.
type Result struct {
	Status Status
	Stdout string
	Stderr string
}

// Driver hands a Job off to a bagging backend and reports the outcome.
type Driver interface {
	Run(ctx context.Context, job Job) (Result, error)
}

// ExecDriver shells out to an external command (DART or equivalent),
// writing the job as JSON on stdin and classifying the exit code. Grounded
// on original_source/bagger/job.py's Job.run: `Popen(cmd, shell=True,
// stdin=PIPE, ...)` followed by `child.communicate(job_params + "\n")`.
type ExecDriver struct {
	Command   string // e.g. dart_command from [Defaults]
	Workflow  string
	OutputDir string
	Delete    bool
	Runner    func(ctx context.Context, name string, args []string, stdin []byte) (stdout, stderr []byte, exitCode int, err error)
}

// NewExecDriver builds an ExecDriver using the real os/exec runner.
func NewExecDriver(command, workflow, outputDir string, delete bool) *ExecDriver {
	return &ExecDriver{
		Command:   command,
		Workflow:  workflow,
		OutputDir: outputDir,
		Delete:    delete,
		Runner:    execRunner,
	}
}

func execRunner(ctx context.Context, name string, args []string, stdin []byte) (stdout, stderr []byte, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(append(stdin, '\n'))
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.Bytes(), errBuf.Bytes()

	if runErr == nil {
		return stdout, stderr, 0, nil
	}
	var exitErr *exec.ExitError
	if asExitError(runErr, &exitErr) {
		return stdout, stderr, exitErr.ExitCode(), nil
	}
	return stdout, stderr, -1, runErr
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// Run invokes the configured command, passing Job as JSON on stdin, and
// classifies the process exit code: 0 is success; 3 returns
// StatusDuplicateBag together with a non-nil error, which callers check
// for and treat as informational rather than as a failure (spec.md §4.9/§8:
// "Post-processor code 3 is not an error"); anything else is an error (the original DART wrapper treats any
// other non-zero DART exit as a job failure to be logged and retried by an
// operator, not auto-retried).
func (d *ExecDriver) Run(ctx context.Context, job Job) (Result, error) {
	payload, err := job.toJSON()
	if err != nil {
		return Result{Status: StatusInvalidPackage}, fmt.Errorf("bagger: failed to marshal job: %w", err)
	}

	args := []string{
		fmt.Sprintf("--workflow=%s", d.Workflow),
		fmt.Sprintf("--output-dir=%s", d.OutputDir),
		fmt.Sprintf("--delete=%t", d.Delete),
	}

	stdout, stderr, exitCode, runErr := d.Runner(ctx, d.Command, args, payload)
	result := Result{Stdout: string(stdout), Stderr: string(stderr)}
	if runErr != nil {
		result.Status = StatusError
		return result, fmt.Errorf("bagger: failed to invoke %q: %w", d.Command, runErr)
	}
	switch exitCode {
	case 0:
		result.Status = StatusSuccess
		return result, nil
	case int(StatusDuplicateBag):
		result.Status = StatusDuplicateBag
		return result, fmt.Errorf("bagger: %q reported a duplicate bag", d.Command)
	default:
		result.Status = StatusError
		return result, fmt.Errorf("bagger: %q exited with code %d: %s", d.Command, exitCode, result.Stderr)
	}
}
