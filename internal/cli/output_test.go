package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/term"
)

func TestOutputFormatter_JSONResult(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Result(StatusOK, map[string]string{"goal": "p(X)>q"})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.Contains(t, buf.String(), "p(X)>q", "operators are not HTML escaped")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("PARSE_ERROR", "bad clause", map[string]int{"clause": 3})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PARSE_ERROR", resp.Error.Code)
	assert.Equal(t, "bad clause", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("PARSE_ERROR", "bad clause", "clause 3")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[PARSE_ERROR]: bad clause")
	assert.NotContains(t, buf.String(), "Details", "details need verbose")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error("PARSE_ERROR", "bad clause", "clause 3"))
	assert.Contains(t, buf.String(), "Details: clause 3")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	cause := term.Errorf(term.CodeUnknownPredicate, "no clauses for foo/1")
	err := formatter.Fail(ExitCommandError, "failed to load program", cause)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, cause)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_PREDICATE", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "failed to load program")

	buf.Reset()
	_ = formatter.Fail(ExitFailure, "io", errors.New("disk full"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ERROR", resp.Error.Code)
}

func TestOutputFormatter_TextLines(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	formatter.Pass("%d answer(s)", 2)
	formatter.Miss("no path")
	formatter.Line("x = %s", "1")

	out := buf.String()
	assert.Contains(t, out, "✓ 2 answer(s)")
	assert.Contains(t, out, "✗ no path")
	assert.Contains(t, out, "x = 1\n")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		errW     bool
		wantOut  string
		wantErrW string
	}{
		{"quiet", false, true, "", ""},
		{"verbose to err writer", true, true, "", "loaded 3\n"},
		{"verbose falls back to writer", true, false, "loaded 3\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, Verbose: tt.verbose}
			if tt.errW {
				formatter.ErrWriter = errOut
			}
			formatter.VerboseLog("loaded %d", 3)
			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantErrW, errOut.String())
		})
	}
}

func TestExitError(t *testing.T) {
	err := NewExitError(ExitFailure, "unsatisfiable")
	assert.Equal(t, "unsatisfiable", err.Error())
	assert.Nil(t, err.Unwrap())

	cause := errors.New("boom")
	wrapped := WrapExitError(ExitCommandError, "load", cause)
	assert.Equal(t, "load: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit error", NewExitError(ExitCommandError, "bad"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("run: %w", NewExitError(ExitFailure, "no")), ExitFailure},
		{"plain error", errors.New("other"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestLimitExit(t *testing.T) {
	assert.Equal(t, ExitFailure, limitExit(term.Errorf(term.CodeResourceExhausted, "max decisions")))
	assert.Equal(t, ExitFailure, limitExit(context.Canceled))
	assert.Equal(t, ExitFailure, limitExit(fmt.Errorf("solve: %w", context.DeadlineExceeded)))
	assert.Equal(t, ExitCommandError, limitExit(term.Errorf(term.CodeTypeMismatch, "not a number")))
	assert.Equal(t, ExitCommandError, limitExit(errors.New("other")))
}
