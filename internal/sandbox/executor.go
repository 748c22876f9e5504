package sandbox

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/buffer"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
)

// ErrExecTimeout signals that the guest exceeded its wall-clock budget.
var ErrExecTimeout = errors.New("execution timeout")

// GuestError is a runtime failure raised by guest code.
type GuestError struct {
	Message string
	Stack   string
}

func (e *GuestError) Error() string { return e.Message }

// ExecOptions configure one execution.
type ExecOptions struct {
	// Filename is bound to the compiled script for stack traces; it is also
	// argv[1] of the process facade.
	Filename string
	Argv     []string
	Env      map[string]string
	Timeout  time.Duration
}

// ExecResult carries the captured output streams.
type ExecResult struct {
	Stdout string
	Stderr string
}

// capturePrinter collects console output: log/info land on stdout, warn and
// error on stderr.
type capturePrinter struct {
	stdout strings.Builder
	stderr strings.Builder
}

func (p *capturePrinter) Log(msg string)   { p.stdout.WriteString(msg + "\n") }
func (p *capturePrinter) Warn(msg string)  { p.stderr.WriteString(msg + "\n") }
func (p *capturePrinter) Error(msg string) { p.stderr.WriteString(msg + "\n") }

var preludeOnce sync.Once
var preludeProgram *goja.Program

func prelude() *goja.Program {
	preludeOnce.Do(func() {
		preludeProgram = goja.MustCompile("prelude.js", preludeSource, false)
	})
	return preludeProgram
}

// Execute runs a bundled module in a fresh, capability-limited context. The
// context contains the console sink, the capability object, a frozen process
// facade, Buffer and the text codecs, and timers; nothing else. Dynamic code
// generation is disabled and require always fails. The synchronous run of the
// bundle is bounded by a wall-clock timeout enforced with an interpreter
// interrupt; pending timers are then drained the way a node process would
// before the loop exits, and their callbacks run outside that timeout.
func Execute(bundle string, capability *Capability, opts ExecOptions) (*ExecResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 1500 * time.Millisecond
	}
	if opts.Filename == "" {
		opts.Filename = "/main.js"
	}

	printer := &capturePrinter{}
	registry := require.NewRegistry()
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer))
	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(registry),
		eventloop.EnableConsole(true),
	)

	var timedOut atomic.Bool
	var execErr error
	loop.Run(func(vm *goja.Runtime) {
		timer := time.AfterFunc(opts.Timeout, func() {
			timedOut.Store(true)
			vm.Interrupt(ErrExecTimeout)
			loop.StopNoWait()
		})
		defer timer.Stop()
		execErr = runBundle(vm, bundle, capability, opts)
	})

	result := &ExecResult{Stdout: printer.stdout.String(), Stderr: printer.stderr.String()}
	if timedOut.Load() {
		return result, fmt.Errorf("%w after %s", ErrExecTimeout, opts.Timeout)
	}
	return result, execErr
}

// runBundle prepares the context and invokes the CommonJS entry trio.
func runBundle(vm *goja.Runtime, bundle string, capability *Capability, opts ExecOptions) error {
	buffer.Enable(vm)

	if err := vm.Set(CapabilityGlobal, capability.bindings()); err != nil {
		return err
	}
	env := opts.Env
	if env == nil {
		env = map[string]string{}
	}
	argv := append([]string{"agent-zip-sandbox", opts.Filename}, opts.Argv...)
	if err := vm.Set("__azs_process_init__", map[string]any{"argv": argv, "env": env}); err != nil {
		return err
	}
	if _, err := vm.RunProgram(prelude()); err != nil {
		return classifyGuestError(err)
	}

	blockedRequire := func(id string) error {
		return fmt.Errorf("cannot require %q: host modules are not available in the sandbox", id)
	}
	if err := vm.Set("require", blockedRequire); err != nil {
		return err
	}

	src := "(function(require, module, exports) {\n" + bundle + "\n})\n"
	program, err := goja.Compile(opts.Filename, src, false)
	if err != nil {
		return fmt.Errorf("%w: compile: %v", ErrBundleFailure, err)
	}
	wrapped, err := vm.RunProgram(program)
	if err != nil {
		return classifyGuestError(err)
	}
	entry, ok := goja.AssertFunction(wrapped)
	if !ok {
		return fmt.Errorf("%w: bundle did not evaluate to a function", ErrBundleFailure)
	}

	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return err
	}
	if _, err := entry(goja.Undefined(), vm.Get("require"), module, exports); err != nil {
		return classifyGuestError(err)
	}
	return nil
}

// classifyGuestError maps goja failures onto the error model: interpreter
// interrupts become timeouts, thrown values become GuestErrors with stacks.
func classifyGuestError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrExecTimeout
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &GuestError{
			Message: exception.Value().String(),
			Stack:   exception.String(),
		}
	}
	return err
}
