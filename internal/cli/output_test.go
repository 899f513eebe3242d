package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventroom/internal/event"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_RenderText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Render(42, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "forty-two")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "forty-two\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("FETCH_FAILED", "load events failed", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "FETCH_FAILED", resp.Error.Code)
	assert.Equal(t, "load events failed", resp.Error.Message)
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("INVALID_INPUT", "bad page", map[string]int{"page": 9}))
	assert.Contains(t, buf.String(), "Error [INVALID_INPUT]: bad page")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{
			name:     "invalid input",
			err:      event.InvalidInput("go to page", "page 9 outside 1..2"),
			wantCode: ExitCommandError,
			wantText: "Error [INVALID_INPUT]: go to page: page 9 outside 1..2\n",
		},
		{
			name:     "not found",
			err:      &event.Error{Code: event.ErrCodeNotFound, Op: "load event", Message: "no event x"},
			wantCode: ExitCommandError,
			wantText: "Error [NOT_FOUND]: load event: no event x\n",
		},
		{
			name:     "not registered",
			err:      event.NotRegistered("chat", "e1"),
			wantCode: ExitFailure,
			wantText: "Error [NOT_REGISTERED]: chat: not registered for event e1\n",
		},
		{
			name:     "plain error",
			err:      errors.New("disk on fire"),
			wantCode: ExitFailure,
			wantText: "Error [ERROR]: disk on fire\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf}

			err := formatter.Fail(tt.err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantText, buf.String())
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			formatter.VerboseLog("opening %s", "eventroom.db")

			assert.Empty(t, out.String(), "diagnostics never corrupt stdout")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "opening eventroom.db")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitFailure, "x", errors.New("y")))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
