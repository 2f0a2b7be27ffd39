package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/wasvm/wasm-acceptor/types"
)

// ResultsFilename is the machine readable record of a run.
const ResultsFilename = "results.json"

// AllLogsFileSink writes every group result to all.log
type AllLogsFileSink struct {
	logger *FileLogger
}

func (s *AllLogsFileSink) Consume(result *types.GroupResult, runID string) error {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	writer, err := s.logger.getAsyncWriter(filepath.Join(dir, AllLogsFilename))
	if err != nil {
		return err
	}

	var content strings.Builder
	writeHeader(&content, result)
	writeSection(&content, "STDERR", result.Stderr)
	writeSection(&content, "STDOUT", result.Stdout)
	content.WriteString("\n")
	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(string) error {
	return nil
}

// FailedGroupFileSink writes failed/<group>.log for every group that did not
// pass, holding the captured output of the engine.
type FailedGroupFileSink struct {
	logger *FileLogger
}

func (s *FailedGroupFileSink) Consume(result *types.GroupResult, runID string) error {
	if result.Status == types.GroupStatusPassed {
		return nil
	}
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	failedDir := filepath.Join(dir, FailedDirName)
	if err := os.MkdirAll(failedDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", failedDir, err)
	}
	writer, err := s.logger.getAsyncWriter(filepath.Join(failedDir, GroupLogFile(result.Group.Name)))
	if err != nil {
		return err
	}

	var content strings.Builder
	writeHeader(&content, result)
	if result.TimedOut {
		fmt.Fprintf(&content, "*** TIMEOUT ***\n")
		fmt.Fprintf(&content, "The engine was killed after %s.\n\n", result.Duration.Round(time.Millisecond))
	}
	if result.Stdout == "" && result.Stderr == "" {
		content.WriteString("No output captured.\n")
	}
	writeSection(&content, "STDERR", result.Stderr)
	writeSection(&content, "STDOUT", result.Stdout)
	return writer.Write([]byte(content.String()))
}

func (s *FailedGroupFileSink) Complete(string) error {
	return nil
}

// GroupRecord is one entry of results.json.
type GroupRecord struct {
	Name       string              `json:"name"`
	Proposal   string              `json:"proposal,omitempty"`
	Status     types.GroupStatus   `json:"status"`
	Reason     string              `json:"reason,omitempty"`
	ExitCode   int                 `json:"exit_code"`
	TimedOut   bool                `json:"timed_out,omitempty"`
	DurationMS int64               `json:"duration_ms"`
	Report     *types.EngineReport `json:"report,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// RunRecord is the content of results.json.
type RunRecord struct {
	RunID  string                `json:"run_id"`
	Totals types.OutcomeCounters `json:"totals"`
	Groups []GroupRecord         `json:"groups"`
}

// NewGroupRecord converts a result into its results.json form.
func NewGroupRecord(r *types.GroupResult) GroupRecord {
	rec := GroupRecord{
		Name:       r.Group.Name,
		Proposal:   r.Group.Proposal,
		Status:     r.Status,
		Reason:     r.Reason,
		ExitCode:   r.ExitCode,
		TimedOut:   r.TimedOut,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Status == types.GroupStatusPassed || r.Status == types.GroupStatusAnomaly {
		rep := r.Report
		rec.Report = &rep
	}
	if r.Error != nil {
		rec.Error = r.Error.Error()
	}
	return rec
}

// ResultsJSONSink accumulates group records and writes results.json on
// Complete.
type ResultsJSONSink struct {
	logger *FileLogger

	mu     sync.Mutex
	totals types.OutcomeCounters
	groups []GroupRecord
}

func (s *ResultsJSONSink) Consume(result *types.GroupResult, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = s.totals.Add(result.Counters())
	s.groups = append(s.groups, NewGroupRecord(result))
	return nil
}

func (s *ResultsJSONSink) Complete(runID string) error {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	record := RunRecord{RunID: runID, Totals: s.totals, Groups: append([]GroupRecord{}, s.groups...)}
	s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	path := filepath.Join(dir, ResultsFilename)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeHeader(b *strings.Builder, r *types.GroupResult) {
	fmt.Fprintf(b, "\n%s\n", strings.Repeat("-", 80))
	fmt.Fprintf(b, "GROUP:    %s\n", r.Group.Name)
	fmt.Fprintf(b, "Status:   %s\n", r.Status)
	if r.Reason != "" {
		fmt.Fprintf(b, "Reason:   %s\n", r.Reason)
	}
	fmt.Fprintf(b, "Exit:     %d\n", r.ExitCode)
	fmt.Fprintf(b, "Duration: %s\n", r.Duration.Round(time.Millisecond))
	if r.Status == types.GroupStatusPassed || r.Status == types.GroupStatusAnomaly {
		fmt.Fprintf(b, "Counters: %s\n", r.Report.Counters())
	}
	if r.Error != nil {
		fmt.Fprintf(b, "Error:    %v\n", r.Error)
	}
	fmt.Fprintf(b, "%s\n\n", strings.Repeat("-", 80))
}

func writeSection(b *strings.Builder, title, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(b, "%s:\n%s\n", title, strings.Repeat("~", len(title)+1))
	fmt.Fprintf(b, "%s\n\n", indentText(stripansi.Strip(text), "  "))
}

// indentText adds indentation to each non-empty line of text
func indentText(text, indent string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}
