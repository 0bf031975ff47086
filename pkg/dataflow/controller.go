package dataflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DataflowState is the lifecycle state of a dataflow run.
type DataflowState int

const (
	StateIdle DataflowState = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateError
)

// String returns the string representation of the state.
func (s DataflowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("DataflowState(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DataflowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrMissingEnv is returned by Start when required variables are unset.
	ErrMissingEnv = errors.New("dataflow: missing environment variables")

	// ErrAlreadyRunning is returned by Start on a started dataflow.
	ErrAlreadyRunning = errors.New("dataflow: already running")

	// ErrNotRunning is returned by Stop on a dataflow that is not running.
	ErrNotRunning = errors.New("dataflow: not running")
)

// Runner starts and stops dataflows on the engine.
type Runner interface {
	// Start starts the dataflow at path and returns its id. An empty id
	// means the engine did not report one.
	Start(ctx context.Context, path string) (string, error)

	// Stop stops the dataflow with the given id. An empty id stops the
	// dataflow without naming it, for runs whose id was never reported.
	Stop(ctx context.Context, id string) error
}

// Controller tracks one run of a parsed dataflow.
type Controller struct {
	df     *ParsedDataflow
	runner Runner
	log    *slog.Logger

	mu    sync.Mutex
	state DataflowState
	id    string
	err   error

	// engineID is the id reported by the runner; id falls back to a
	// local UUID when it is empty.
	engineID string
}

// NewController creates a controller for df. A nil logger selects
// slog.Default.
func NewController(df *ParsedDataflow, runner Runner, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		df:     df,
		runner: runner,
		log:    logger.With("dataflow", df.Path),
	}
}

// State returns the current state.
func (c *Controller) State() DataflowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DataflowID returns the id of the current run, or "" before Start.
func (c *Controller) DataflowID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Err returns the error that moved the controller to StateError.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Start checks the env requirements and starts the dataflow. When the
// runner reports no id, a random one is assigned for DataflowID; it is
// never passed back to the runner.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateStarting, StateRunning, StateStopping:
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if missing := c.df.MissingEnv(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, r := range missing {
			names[i] = r.Variable
		}
		defer c.mu.Unlock()
		return c.failLocked(fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(names, ", ")))
	}
	c.state = StateStarting
	c.err = nil
	c.mu.Unlock()

	id, err := c.runner.Start(ctx, c.df.Path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return c.failLocked(fmt.Errorf("dataflow: start: %w", err))
	}
	c.engineID = id
	if id == "" {
		id = uuid.NewString()
	}
	c.id = id
	c.state = StateRunning
	c.log.Info("dataflow started", "id", id)
	return nil
}

// Stop stops the running dataflow.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.state = StateStopping
	id := c.id
	engineID := c.engineID
	c.mu.Unlock()

	err := c.runner.Stop(ctx, engineID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return c.failLocked(fmt.Errorf("dataflow: stop %s: %w", id, err))
	}
	c.state = StateStopped
	c.log.Info("dataflow stopped", "id", id)
	return nil
}

func (c *Controller) failLocked(err error) error {
	c.state = StateError
	c.err = err
	c.log.Error("dataflow failed", "error", err)
	return err
}

// CLIRunner runs dataflows with the dora command line tool.
type CLIRunner struct {
	// Bin is the dora executable; empty selects "dora" from PATH.
	Bin string
	// Dir is the working directory of the commands.
	Dir string
}

func (r *CLIRunner) bin() string {
	if r.Bin == "" {
		return "dora"
	}
	return r.Bin
}

// Start runs "dora start <path> --detach" and returns the dataflow UUID
// printed by the tool, if any.
func (r *CLIRunner) Start(ctx context.Context, path string) (string, error) {
	out, err := r.run(ctx, "start", path, "--detach")
	if err != nil {
		return "", err
	}
	return findUUID(out), nil
}

// Stop runs "dora stop <id>", or plain "dora stop" when id is empty.
func (r *CLIRunner) Stop(ctx context.Context, id string) error {
	args := []string{"stop"}
	if id != "" {
		args = append(args, id)
	}
	_, err := r.run(ctx, args...)
	return err
}

func (r *CLIRunner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.bin(), args...)
	cmd.Dir = r.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w: %s", r.bin(), args[0], err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

// findUUID returns the first UUID among the whitespace separated fields
// of s.
func findUUID(s string) string {
	for _, f := range strings.Fields(s) {
		f = strings.Trim(f, `"'.,:;()[]{}`)
		if id, err := uuid.Parse(f); err == nil {
			return id.String()
		}
	}
	return ""
}
