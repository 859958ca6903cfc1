package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/mna/mainer"
	"github.com/renlang/rengo/ren"
	renstdio "github.com/renlang/rengo/ren/stdio"
	"github.com/renlang/rengo/ren/wasm"
	"github.com/tetratelabs/wazero"
)

type evalEnv struct {
	Runtime string `env:"RENGO_RUNTIME"`
}

func (c *Cmd) Eval(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var ec evalEnv
	if err := env.Parse(&ec); err != nil {
		return printError(stdio, err)
	}
	runtimePath := c.Runtime
	if runtimePath == "" {
		runtimePath = ec.Runtime
	}
	if runtimePath == "" {
		return printError(stdio, errors.New("eval: no engine module: pass --runtime or set RENGO_RUNTIME"))
	}

	guest, err := os.ReadFile(runtimePath)
	if err != nil {
		return printError(stdio, err)
	}

	wr := wazero.NewRuntime(ctx)
	defer wr.Close(ctx)

	// The engine's own diagnostics go to stderr; its scripted I/O goes
	// through the standard-I/O device, not through WASI.
	mod, err := wasm.Load(ctx, wr, guest, wazero.NewModuleConfig().WithStderr(stdio.Stderr))
	if err != nil {
		return printError(stdio, err)
	}
	defer mod.Close(ctx)

	eng, err := ren.NewEngine(mod)
	if err != nil {
		return printError(stdio, err)
	}
	defer eng.Close()

	ren.SetFinder(func() (*ren.Engine, error) { return eng, nil })
	defer ren.SetFinder(nil)

	shim := renstdio.New(stdio.Stdin, stdio.Stdout)
	if c.NullStdio {
		shim.Null()
	}
	if err := eng.RegisterDevice(shim.Device()); err != nil {
		return printError(stdio, err)
	}

	if c.flags["e"] || c.flags["source"] {
		return reportEval(stdio, evalOne(ctx, stdio, eng, c.Source))
	}
	for _, file := range args {
		b, err := os.ReadFile(file)
		if err != nil {
			return printError(stdio, err)
		}
		if err := reportEval(stdio, evalOne(ctx, stdio, eng, string(b))); err != nil {
			return err
		}
	}
	return nil
}

// reportEval prints evaluation failures, except a quit, which is not a
// failure to report but an exit code to carry out.
func reportEval(stdio mainer.Stdio, err error) error {
	var exit *ren.ExitCommand
	if errors.As(err, &exit) {
		return err
	}
	return printError(stdio, err)
}

func evalOne(ctx context.Context, stdio mainer.Stdio, eng *ren.Engine, source string) error {
	v, err := eng.Do(ctx, source)
	if err != nil {
		return err
	}
	if !v.HasValue() || v.IsUnset() {
		return nil
	}
	s, err := v.Form()
	if err != nil {
		return err
	}
	fmt.Fprintln(stdio.Stdout, s)
	return nil
}
