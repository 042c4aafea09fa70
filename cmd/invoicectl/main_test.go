package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dsn string, args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append([]string{"--driver", "sqlite3", "--dsn", dsn}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://pay.example")
	dsn := filepath.Join(t.TempDir(), "invoices.db")

	out, err := run(t, dsn, "create", "--amount", "2.5", "--payee", "0xM")
	require.NoError(t, err)
	require.Contains(t, out, `"status":"pending"`)
	require.Contains(t, out, `"amount":"2500000000000000000"`)
	require.Contains(t, out, `"currency":"MNEE"`)

	start := strings.Index(out, `"invoiceId":"`) + len(`"invoiceId":"`)
	id := out[start : start+10]

	out, err = run(t, dsn, "status", strings.ToLower(id))
	require.NoError(t, err)
	require.Contains(t, out, `"invoiceId":"`+id+`"`)

	_, err = run(t, dsn, "create", "--amount", "1", "--payee", "0xM")
	require.NoError(t, err)
	out, err = run(t, dsn, "list", "--payee", "0xm")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	out, err = run(t, dsn, "list", "--payee", "0xM", "--limit", "1")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestCommands_Errors(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "invoices.db")
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "unknown invoice",
			args:    []string{"status", "FFFFFFFFFF"},
			wantErr: "invoice FFFFFFFFFF not found",
		},
		{
			name:    "zero amount",
			args:    []string{"create", "--amount", "0", "--payee", "0xM"},
			wantErr: "invalid amount",
		},
		{
			name:    "amount is not a number",
			args:    []string{"create", "--amount", "ten", "--payee", "0xM"},
			wantErr: `invalid amount "ten"`,
		},
		{
			name:    "missing payee",
			args:    []string{"create", "--amount", "1"},
			wantErr: `required flag(s) "payee" not set`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, dsn, tt.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCommands_MemoryDriver(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"--driver", "memory", "list", "--payee", "0xM"})
	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "needs a database")
}
