package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRegistry writes files into a fresh directory and returns it.
func writeRegistry(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func executeValidate(t *testing.T, format string, dir string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir})
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidRegistry(t *testing.T) {
	out, err := executeValidate(t, "text", filepath.Join("testdata", "registry"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ 4 transformer(s) valid")
}

func TestValidateValidRegistryJSON(t *testing.T) {
	out, err := executeValidate(t, "json", filepath.Join("testdata", "registry"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"cache", "download", "parse", "render"}, resp.Data.Transformers)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := executeValidate(t, "text", "/nonexistent/directory/path")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := executeValidate(t, "text", t.TempDir())
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateNotADirectory(t *testing.T) {
	dir := writeRegistry(t, map[string]string{"one.cue": `transformer: a: {from: ["root"], to: "x"}`})

	_, err := executeValidate(t, "text", filepath.Join(dir, "one.cue"))
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not a directory")
}

func TestValidateSyntaxError(t *testing.T) {
	dir := writeRegistry(t, map[string]string{"bad.cue": "transformer: a: {\n"})

	out, err := executeValidate(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBuildFailed, resp.Error.Code)
}

func TestValidateMissingTo(t *testing.T) {
	dir := writeRegistry(t, map[string]string{"a.cue": `transformer: a: {from: ["root"]}`})

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E006")
	assert.Contains(t, out, "to is required")
}

func TestValidateSchemaErrors(t *testing.T) {
	dir := writeRegistry(t, map[string]string{
		"a.cue": `transformer: a: {from: ["root"], to: "x"}`,
		"b.cue": `transformer: b: {from: ["ghost"], to: "y"}`,
	})

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E110")
	assert.Contains(t, out, "ghost")
}

func TestValidateSchemaErrorsJSON(t *testing.T) {
	dir := writeRegistry(t, map[string]string{
		"a.cue": `transformer: a: {from: ["root", "root"], to: "x"}`,
	})

	out, err := executeValidate(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, "E105", resp.Data.Errors[0].Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E105", resp.Error.Code)
}

func TestValidateNoTransformers(t *testing.T) {
	dir := writeRegistry(t, map[string]string{"empty.cue": "package registry\n"})

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "no transformers declared")
}

func TestValidateSplitAcrossFiles(t *testing.T) {
	dir := writeRegistry(t, map[string]string{
		"a.cue":        `transformer: a: {from: ["root"], to: "x"}`,
		"nested/b.cue": `transformer: a: {description: "split"}`,
	})

	out, err := executeValidate(t, "text", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ 1 transformer(s) valid")
}

func TestValidateVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{filepath.Join("testdata", "registry")})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, errBuf.String(), "Found 1 CUE file(s)")
	assert.Contains(t, errBuf.String(), "Validating transformer: render")
}

func TestLoadRegistry(t *testing.T) {
	res, err := LoadRegistry(filepath.Join("testdata", "registry"))
	require.NoError(t, err)

	assert.Equal(t, 1, res.FileCount)
	assert.Equal(t, []string{filepath.Join("testdata", "registry", "pipeline.cue")}, res.Files)
	spec, ok := res.Registry.Lookup("download")
	require.True(t, ok)
	assert.Equal(t, "bytes", spec.To)
}

func TestLoadErrorFormat(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in x"}
	assert.Equal(t, "E003: no CUE files found in x", err.Error())
	assert.Equal(t, ErrCodeNoFiles, loadErrorCode(err))
	assert.Equal(t, ErrCodeGeneric, loadErrorCode(os.ErrNotExist))
}
