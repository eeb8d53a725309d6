package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FyroxEngine/Fyrox-sub011/visitor"
)

func writeDoc(t *testing.T, dir string) string {
	t.Helper()
	v := visitor.New()
	r, err := v.EnterRegion("Player")
	require.NoError(t, err)
	hp := float32(87.5)
	require.NoError(t, visitor.VisitValue(r.Visitor, "Health", &hp))
	r.Leave()

	path := filepath.Join(dir, "save.bin")
	require.NoError(t, v.SaveBinaryToFile(path))
	return path
}

func TestPrintTree(t *testing.T) {
	path := writeDoc(t, t.TempDir())
	var out bytes.Buffer
	require.NoError(t, run([]string{path}, nil, &out))
	assert.Equal(t, "__ROOT__\n  Player\n    - Health<f32:87.5>\n", out.String())
}

func TestStdin(t *testing.T) {
	path := writeDoc(t, t.TempDir())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, run(nil, bytes.NewReader(b), &out))
	assert.Contains(t, out.String(), "Player")
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir)
	txt := filepath.Join(dir, "save.txt")

	var out bytes.Buffer
	require.NoError(t, run([]string{"-q", "--to", "ascii", "-o", txt, path}, nil, &out))
	assert.Empty(t, out.String())

	b, err := os.ReadFile(txt)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "FTAX:2;"))

	out.Reset()
	require.NoError(t, run([]string{"--to", "binary", "-q", txt}, nil, &out))
	orig, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, orig, out.Bytes())
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir)
	cfg := filepath.Join(dir, "vdump.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("quiet: true\nto: ascii\nindent: \"  \"\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, run([]string{"--config", cfg, path}, nil, &out))
	assert.Contains(t, out.String(), "\n  Player\n")
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir)
	db := filepath.Join(dir, "docs.db")

	var out bytes.Buffer
	require.NoError(t, run([]string{"-q", "--store", db, "--put", "slot1", path}, nil, &out))
	require.NoError(t, run([]string{"--store", db, "--list"}, nil, &out))
	assert.True(t, strings.HasPrefix(out.String(), "slot1\tbinary\tv2\t"), out.String())

	out.Reset()
	require.NoError(t, run([]string{"--store", db, "--get", "slot1"}, nil, &out))
	assert.Contains(t, out.String(), "Health<f32:87.5>")

	assert.Error(t, run([]string{"--get", "slot1"}, nil, &out))
}

func TestBadInput(t *testing.T) {
	var out bytes.Buffer
	err := run(nil, strings.NewReader("garbage"), &out)
	assert.ErrorIs(t, err, visitor.ErrNotSupportedFormat)
	assert.Error(t, run([]string{"--to", "yaml"}, strings.NewReader("FTAF __ROOT__ [0:] {0:}"), &out))
}

func TestMetrics(t *testing.T) {
	path := writeDoc(t, t.TempDir())
	var out bytes.Buffer
	require.NoError(t, run([]string{"-q", "--metrics", "--to", "ascii", path}, nil, &out))
	assert.Regexp(t, `visitor_documents_total\{format=binary,op=decode\} [1-9]`, out.String())
	assert.Regexp(t, `visitor_documents_total\{format=ascii,op=encode\} [1-9]`, out.String())
}

func TestExport(t *testing.T) {
	path := writeDoc(t, t.TempDir())

	var out bytes.Buffer
	require.NoError(t, run([]string{"--json", path}, nil, &out))
	assert.JSONEq(t, `{"name":"__ROOT__","children":[{"name":"Player","fields":[{"name":"Health","type":"f32","value":"87.5"}]}]}`, out.String())

	out.Reset()
	require.NoError(t, run([]string{"--yaml", path}, nil, &out))
	assert.YAMLEq(t, "name: __ROOT__\nchildren:\n  - name: Player\n    fields:\n      - {name: Health, type: f32, value: \"87.5\"}\n", out.String())
}
