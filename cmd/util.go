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

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/iafan/cwalk"
	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// checkError logs err and exits the process: fatal errors print a
// single message and abort.
func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func getFlagString(cmd *cobra.Command, flag string) string {
	v, err := cmd.Flags().GetString(flag)
	checkError(errors.Wrapf(err, "flag --%s", flag))
	return v
}

func getFlagStringSlice(cmd *cobra.Command, flag string) []string {
	v, err := cmd.Flags().GetStringSlice(flag)
	checkError(errors.Wrapf(err, "flag --%s", flag))
	return v
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	v, err := cmd.Flags().GetBool(flag)
	checkError(errors.Wrapf(err, "flag --%s", flag))
	return v
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	v, err := cmd.Flags().GetInt(flag)
	checkError(errors.Wrapf(err, "flag --%s", flag))
	return v
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v <= 0 {
		checkError(fmt.Errorf("flag --%s should be a positive integer", flag))
	}
	return v
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v < 0 {
		checkError(fmt.Errorf("flag --%s should be a non-negative integer", flag))
	}
	return v
}

func getFlagNonNegativeFloat64(cmd *cobra.Command, flag string) float64 {
	v, err := cmd.Flags().GetFloat64(flag)
	checkError(errors.Wrapf(err, "flag --%s", flag))
	if v < 0 {
		checkError(fmt.Errorf("flag --%s should be non-negative", flag))
	}
	return v
}

// isStdin reports whether file names stdin, the "-" convention used
// throughout this CLI's file-path flags.
func isStdin(file string) bool {
	return file == "-"
}

// fileExists reports whether path names a regular, readable file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// formatFlagUsage wraps a flag's help text: no-op here since cobra
// already wraps at the terminal width, kept as a named seam so flag
// declarations read consistently across subcommands.
func formatFlagUsage(msg string) string {
	return msg
}

// usageTemplate renders a one-line "Usage:" example for
// cmd.SetUsageTemplate.
func usageTemplate(example string) string {
	return fmt.Sprintf(`Usage:{{if .Runnable}}
  {{.UseLine}} %s{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`, example)
}

// Options carries the global flags shared by every subcommand, parsed
// once by getOptions.
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",
	}
}

// outStream opens outFile for writing, wrapping it in a pgzip writer
// when gzipped is true, for an "-o out.tsv.gz" convention. "-" writes
// to stdout.
func outStream(outFile string, gzipped bool, compressionLevel int) (*bufio.Writer, *pgzip.Writer, io.WriteCloser, error) {
	var w io.WriteCloser
	if isStdin(outFile) || outFile == "" {
		w = os.Stdout
	} else {
		fh, err := os.Create(outFile)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "creating output file %q", outFile)
		}
		w = fh
	}

	if !gzipped {
		return bufio.NewWriter(w), nil, w, nil
	}

	level := compressionLevel
	if level < pgzip.BestSpeed || level > pgzip.BestCompression {
		level = pgzip.DefaultCompression
	}
	gw, err := pgzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "creating gzip writer")
	}
	return bufio.NewWriter(gw), gw, w, nil
}

// getFileListFromDir recursively collects every file under path whose
// name matches pattern, walking with cwalk.WalkWithSymlinks(path, ...)
// concurrency rather than filepath.Walk, so a directory of many
// reference/read files scans with threads workers instead of serially.
func getFileListFromDir(path string, pattern *regexp.Regexp, threads int) ([]string, error) {
	files := make([]string, 0, 512)
	ch := make(chan string, threads)
	done := make(chan int)
	go func() {
		for file := range ch {
			files = append(files, file)
		}
		done <- 1
	}()

	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(path, func(_path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && pattern.MatchString(info.Name()) {
			ch <- filepath.Join(path, _path)
		}
		return nil
	})
	close(ch)
	<-done
	if err != nil {
		return nil, err
	}
	return files, nil
}

// parseStrandedFileList splits a comma-separated flag value into a
// trimmed, non-empty file list.
func parseStrandedFileList(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

