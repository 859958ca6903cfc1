package ren_test

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/renlang/rengo/internal/enginetest"
	"github.com/renlang/rengo/internal/filetest"
	"github.com/renlang/rengo/ren"
	"github.com/renlang/rengo/ren/stdio"
	"github.com/stretchr/testify/require"
)

var testUpdateScriptTests = flag.Bool("test.update-script-tests", false, "If set, replace expected script test results with actual results.")

// TestScripts evaluates each script in testdata/in on a fresh engine
// and compares the console output plus the formed result against the
// golden files in testdata/out.
func TestScripts(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, name := range filetest.Scripts(t, srcDir, ".ren") {
		t.Run(name, func(t *testing.T) {
			eng, err := ren.NewEngine(enginetest.New())
			require.NoError(t, err)
			defer eng.Close()

			var out, ebuf bytes.Buffer
			shim := stdio.New(strings.NewReader(""), &out)
			require.NoError(t, eng.RegisterDevice(shim.Device()))

			b, err := os.ReadFile(filepath.Join(srcDir, name))
			require.NoError(t, err)

			v, err := eng.Do(context.Background(), string(b))
			if err != nil {
				fmt.Fprintln(&ebuf, err)
			} else if !v.IsUnset() {
				fmt.Fprintln(&out, v.String())
			}

			filetest.DiffGolden(t, "output", filepath.Join(resultDir, name+".want"), out.String(), testUpdateScriptTests)
			filetest.DiffGolden(t, "errors", filepath.Join(resultDir, name+".err"), ebuf.String(), testUpdateScriptTests)
		})
	}
}
