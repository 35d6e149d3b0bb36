package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInputs(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "lidl.txt")
	photo := filepath.Join(dir, "biedronka.JPG")
	extra := filepath.Join(dir, "page2.png")
	require.NoError(t, os.WriteFile(text, []byte("LIDL\nMleko 3,49"), 0o600))
	require.NoError(t, os.WriteFile(photo, []byte{0xff, 0xd8}, 0o600))
	require.NoError(t, os.WriteFile(extra, []byte{0x89, 0x50}, 0o600))

	inputs, err := readInputs([]string{text, photo}, []string{extra})
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, text, inputs[0].ID)
	assert.Equal(t, "LIDL\nMleko 3,49", inputs[0].RawText)
	assert.Equal(t, [][]byte{{0x89, 0x50}}, inputs[0].Images)

	assert.Equal(t, photo, inputs[1].ID)
	assert.Empty(t, inputs[1].RawText)
	assert.Equal(t, [][]byte{{0xff, 0xd8}}, inputs[1].Images)
}

func TestReadInputsMissingFile(t *testing.T) {
	_, err := readInputs([]string{filepath.Join(t.TempDir(), "missing.txt")}, nil)
	assert.ErrorContains(t, err, "failed to read receipt")
}

func TestRender(t *testing.T) {
	v := map[string]any{"strategy": "lidl", "needs_review": false}

	var js bytes.Buffer
	require.NoError(t, render(&js, "json", v))
	assert.JSONEq(t, `{"strategy":"lidl","needs_review":false}`, js.String())

	var y bytes.Buffer
	require.NoError(t, render(&y, "yaml", v))
	assert.Contains(t, y.String(), "strategy: lidl")
	assert.Contains(t, y.String(), "needs_review: false")
}

func TestParseRejectsUnknownOutput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"parse", "--output", "xml", "receipt.txt"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "unsupported output format")
}
