package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exec(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestEncodeDecode(t *testing.T) {
	out, _, code := exec(t, "encode", "tenant=acme,inc", "b:locale=en:GB")
	require.Equal(t, 0, code)
	field := strings.TrimSpace(out)
	assert.Equal(t, "tenant=acme|cinc,b:locale=en|oGB", field)

	out, _, code = exec(t, "decode", field)
	require.Equal(t, 0, code)
	assert.Equal(t, "downstream\ttenant=acme,inc\nbidirectional\tlocale=en:GB\n", out)

	out, _, code = exec(t, "decode", "--json", field)
	require.Equal(t, 0, code)
	assert.JSONEq(t, `{"downstream":{"tenant":"acme,inc"},"bidirectional":{"locale":"en:GB"}}`, out)
}

func TestDecodeMalformed(t *testing.T) {
	_, stderr, code := exec(t, "decode", "a=b=c")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid formatted context data")
}

func TestEncodeRejectsBadEntry(t *testing.T) {
	_, stderr, code := exec(t, "encode", "nokey")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not key=value")
}

func TestHeaders(t *testing.T) {
	out, _, code := exec(t, "headers", "--message-id", "m-1", "--trace-id", "4bf92f3577b34da6a3ce929d0e0e4736", "tenant=acme")
	require.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "conduit-context: tenant=acme", lines[0])
	assert.Equal(t, "conduit-message-id: m-1", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-"))
	assert.True(t, strings.HasSuffix(lines[2], "-01"))
}

func TestHeadersUseConfiguredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conduit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wire:\n  context_field: x-ctx\n  message_id_field: x-id\n"), 0o600))

	out, _, code := exec(t, "--config", path, "headers", "--message-id", "m-2", "a=1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "x-ctx: a=1\n")
	assert.Contains(t, out, "x-id: m-2\n")
}

func TestTraceparent(t *testing.T) {
	out, _, code := exec(t, "traceparent", "4bf92f3577b34da6a3ce929d0e0e4736")
	require.Equal(t, 0, code)
	parts := strings.Split(strings.TrimSpace(out), "-")
	require.Len(t, parts, 4)
	assert.Equal(t, "00", parts[0])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", parts[1])
	assert.Len(t, parts[2], 16)

	_, _, code = exec(t, "traceparent", "nope")
	assert.Equal(t, 1, code)
}

func TestID(t *testing.T) {
	out, _, code := exec(t, "id", "-n", "3")
	require.Equal(t, 0, code)
	ids := strings.Fields(out)
	require.Len(t, ids, 3)
	assert.Len(t, ids[0], 26)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestUnknownCommand(t *testing.T) {
	_, _, code := exec(t, "frobnicate")
	assert.Equal(t, 2, code)
}
