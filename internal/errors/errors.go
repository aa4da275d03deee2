// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errors holds the user facing errors of the apindex CLI.
//
// A UserError says what went wrong, why, and how to fix it, and carries the
// process exit code:
//
//	return errors.NewConfigError(
//	    "Cannot read configuration",
//	    "config.json does not exist",
//	    "Run: apindex init",
//	    err,
//	)
//
// Errors raised by the domain packages are mapped onto a UserError with
// Classify, and Report prints the result and picks the exit code.
package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	crdb "github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"github.com/kraklabs/apindex/pkg/ledger"
	"github.com/kraklabs/apindex/pkg/processor"
	"github.com/kraklabs/apindex/pkg/release"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitConfig     = 1
	ExitLedger     = 2
	ExitNetwork    = 3
	ExitInput      = 4
	ExitPermission = 5
	ExitNotFound   = 6
	// ExitLocked means another invocation owns the ledger.
	ExitLocked   = 7
	ExitInternal = 10
)

// UserError is an error meant to be read by a person.
type UserError struct {
	// Message is what went wrong.
	Message string
	// Cause is why it happened. Optional.
	Cause string
	// Fix is what to do about it. Optional.
	Fix string

	ExitCode int
	Err      error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// New creates a UserError with an explicit exit code.
func New(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError reports an unreadable or invalid configuration.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return New(ExitConfig, msg, cause, fix, err)
}

// NewLedgerError reports a ledger that cannot be written.
func NewLedgerError(msg, cause, fix string, err error) *UserError {
	return New(ExitLedger, msg, cause, fix, err)
}

// NewNetworkError reports a release index that cannot be reached.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return New(ExitNetwork, msg, cause, fix, err)
}

// NewInputError reports bad command line usage.
func NewInputError(msg, cause, fix string) *UserError {
	return New(ExitInput, msg, cause, fix, nil)
}

func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return New(ExitPermission, msg, cause, fix, err)
}

func NewNotFoundError(msg, cause, fix string) *UserError {
	return New(ExitNotFound, msg, cause, fix, nil)
}

// NewLockedError reports a ledger held by another process.
func NewLockedError(msg, cause, fix string, err error) *UserError {
	return New(ExitLocked, msg, cause, fix, err)
}

func NewInternalError(msg, cause, fix string, err error) *UserError {
	return New(ExitInternal, msg, cause, fix, err)
}

// Classify maps err onto a UserError. A UserError anywhere in the chain
// is returned as is. Quota exhaustion is a planned stop and classifies as
// nil.
func Classify(err error) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if crdb.As(err, &ue) {
		return ue
	}
	switch {
	case crdb.Is(err, ledger.ErrQuotaExhausted):
		return nil
	case crdb.Is(err, processor.ErrContractViolation):
		return NewInternalError(
			"Job ledger is inconsistent",
			"A job reported as done was not recorded as done",
			"Inspect the ledger file and report the run log",
			err,
		)
	case crdb.Is(err, release.ErrNotFound):
		return NewNotFoundError(
			"Project not found on the release index",
			err.Error(),
			"Check the project name in the packages list",
		)
	case crdb.HasAssertionFailure(err):
		return NewInternalError("Internal error", "", "Report the run log", err)
	}
	return NewInternalError("Command failed", "", "", err)
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for a terminal. Colors are skipped when noColor
// is set or NO_COLOR is present in the environment.
func (e *UserError) Format(noColor bool) string {
	saved := color.NoColor
	defer func() { color.NoColor = saved }()
	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")
	if e.Err != nil {
		out.WriteString(colorCause.Sprint("Cause: "))
		if e.Cause != "" {
			out.WriteString(e.Cause + " (" + e.Err.Error() + ")")
		} else {
			out.WriteString(e.Err.Error())
		}
		out.WriteString("\n")
	} else if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the --json rendering of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

func (e *UserError) ToJSON() ErrorJSON {
	j := ErrorJSON{Error: e.Message, Cause: e.Cause, Fix: e.Fix, ExitCode: e.ExitCode}
	if j.Cause == "" && e.Err != nil {
		j.Cause = e.Err.Error()
	}
	return j
}

// Report writes err to w and returns the exit code the process should use.
func Report(w io.Writer, err error, jsonOutput, noColor bool) int {
	ue := Classify(err)
	if ue == nil {
		return ExitSuccess
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ue.ToJSON())
	} else {
		_, _ = fmt.Fprint(w, ue.Format(noColor))
	}
	return ue.ExitCode
}
