// Copyright © 2023-2024 Chromap contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package cmd implements the chromap command line: a cobra RootCmd
// with one subcommand per externally visible operation.
package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
)

// VERSION is the chromap mapping-core build version.
const VERSION = "0.1.0"

var log = logging.MustGetLogger("chromap")

var logFormatColored = logging.MustStringFormatter(
	`%{color}[%{level:.4s}]%{color:reset} %{message}`,
)

var logFormatPlain = logging.MustStringFormatter(
	`[%{level:.4s}] %{message}`,
)

func init() {
	var out logging.Backend
	if isatty.IsTerminal(os.Stderr.Fd()) {
		backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
		out = logging.NewBackendFormatter(backend, logFormatColored)
	} else {
		backend := logging.NewLogBackend(os.Stderr, "", 0)
		out = logging.NewBackendFormatter(backend, logFormatPlain)
	}
	logging.SetBackend(out)
}

// addLog tees logging output to file in addition to stderr, returning
// the opened handle so callers can close it on exit.
func addLog(file string, verbose bool) *os.File {
	fh, err := os.Create(file)
	if err != nil {
		checkError(fmt.Errorf("creating log file %q: %w", file, err))
	}

	fileBackend := logging.NewBackendFormatter(logging.NewLogBackend(fh, "", 0), logFormatPlain)

	var level logging.Level
	if verbose {
		level = logging.DEBUG
	} else {
		level = logging.INFO
	}
	leveledFile := logging.AddModuleLevel(fileBackend)
	leveledFile.SetLevel(level, "")

	stderrBackend := logging.NewLogBackend(os.Stderr, "", 0)
	stderrFormatted := logging.NewBackendFormatter(stderrBackend, logFormatPlain)
	leveledStderr := logging.AddModuleLevel(stderrFormatted)
	leveledStderr.SetLevel(level, "")

	logging.SetBackend(leveledFile, leveledStderr)
	return fh
}

// RootCmd is the chromap binary's command tree root.
var RootCmd = &cobra.Command{
	Use:   "chromap",
	Short: "chromap - mapping chromatin-assay reads to a reference",
	Long: fmt.Sprintf(`chromap - fast alignment and preprocessing of chromatin-assay reads (v%s)

  mapping core: seed, verify, pair and deduplicate ATAC-seq/ChIP-seq/
  Hi-C/scATAC reads against a reference genome.

`, VERSION),
}

func init() {
	RootCmd.PersistentFlags().IntP("threads", "j", 0,
		formatFlagUsage("Number of worker threads (0 for all CPUs)."))
	RootCmd.PersistentFlags().BoolP("quiet", "q", false,
		formatFlagUsage("Suppress progress/info messages."))
	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage("Also write log messages to this file."))

	RootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the command tree, exiting the process on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
