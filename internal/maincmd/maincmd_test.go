package maincmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		desc    string
		args    []string
		flags   map[string]bool
		source  string
		wantErr string
	}{
		{"no command", nil, nil, "", "no command specified"},
		{"unknown command", []string{"frob"}, nil, "", "unknown command: frob"},
		{"eval without input", []string{"eval"}, nil, "", "at least one file or -e"},
		{"eval with file", []string{"eval", "x.ren"}, nil, "", ""},
		{"eval with short source flag", []string{"eval"}, map[string]bool{"e": true}, "int 1", ""},
		{"eval with long source flag", []string{"eval"}, map[string]bool{"source": true}, "int 1", ""},
		{"eval with empty source", []string{"eval"}, map[string]bool{"e": true}, "", ""},
		{"eval with source and file", []string{"eval", "x.ren"}, map[string]bool{"e": true}, "int 1", "cannot be combined"},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			cmd := &Cmd{Source: c.source}
			cmd.SetArgs(c.args)
			cmd.SetFlags(c.flags)
			err := cmd.Validate()
			if c.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, c.wantErr)
			}
		})
	}
}

func TestValidateHelpVersion(t *testing.T) {
	// help and version short-circuit command validation
	require.NoError(t, (&Cmd{Help: true}).Validate())
	require.NoError(t, (&Cmd{Version: true}).Validate())
}
