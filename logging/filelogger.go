package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/wasvm/wasm-acceptor/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	SummaryFilename    = "summary.log"
	AllLogsFilename    = "all.log"
	FailedDirName      = "failed"
)

// ResultSink is an interface for different ways of consuming group results
type ResultSink interface {
	// Consume processes a single group result
	Consume(result *types.GroupResult, runID string) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// FileLogger writes the artifacts of one sweep under <baseDir>/testrun-<runID>.
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Directory of this run
	failedDir    string                // Directory for non-passing groups
	summaryFile  string                // Path to the summary file
	allLogsFile  string                // Path to the combined log file
	mu           sync.Mutex            // Protects asyncWriters
	sinks        []ResultSink          // Collection of result consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
	runID        string
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates the run directory and the default sinks.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	failedDir := filepath.Join(logDir, FailedDirName)
	for _, dir := range []string{baseDir, logDir, failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		failedDir:    failedDir,
		summaryFile:  filepath.Join(logDir, SummaryFilename),
		allLogsFile:  filepath.Join(logDir, AllLogsFilename),
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}
	logger.sinks = []ResultSink{
		&AllLogsFileSink{logger: logger},
		&FailedGroupFileSink{logger: logger},
		&ResultsJSONSink{logger: logger},
	}
	return logger, nil
}

// AddSink registers an extra consumer after the default ones.
func (l *FileLogger) AddSink(sink ResultSink) {
	l.sinks = append(l.sinks, sink)
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close()
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// GetDirectoryForRunID returns the path for a specific runID
func (l *FileLogger) GetDirectoryForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	if runID == l.runID {
		return l.logDir, nil
	}
	return filepath.Join(l.baseDir, RunDirectoryPrefix+runID), nil
}

// LogGroupResult feeds a group result to every registered sink.
func (l *FileLogger) LogGroupResult(result *types.GroupResult, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	for _, sink := range l.sinks {
		if err := sink.Consume(result, runID); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// LogSummary writes the rendered report to summary.log. Colour escapes are
// stripped so the file reads the same as a --no-color run.
func (l *FileLogger) LogSummary(summary string, runID string) error {
	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	writer, err := l.getAsyncWriter(filepath.Join(dir, SummaryFilename))
	if err != nil {
		return err
	}
	return writer.Write([]byte(stripansi.Strip(summary)))
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	for _, sink := range l.sinks {
		if err := sink.Complete(runID); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}
	l.closeAllWriters()
	return nil
}

// GetBaseDir returns the directory of the current run
func (l *FileLogger) GetBaseDir() string {
	return l.logDir
}

func (l *FileLogger) GetFailedDir() string {
	return l.failedDir
}

func (l *FileLogger) GetSummaryFile() string {
	return l.summaryFile
}

func (l *FileLogger) GetAllLogsFile() string {
	return l.allLogsFile
}

// GetRunID returns the current runID
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetSinkByType returns a sink whose struct name is sinkType.
func (l *FileLogger) GetSinkByType(sinkType string) (ResultSink, bool) {
	for _, sink := range l.sinks {
		typeName := fmt.Sprintf("%T", sink)
		if idx := strings.LastIndex(typeName, "."); idx >= 0 {
			typeName = typeName[idx+1:]
		}
		typeName = strings.TrimPrefix(typeName, "*")
		if typeName == sinkType {
			return sink, true
		}
	}
	return nil, false
}

// safeFilename converts a group name into a flat file name.
func safeFilename(s string) string {
	r := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	return r.Replace(s)
}

// GroupLogFile returns the name of the per-group log written for a
// non-passing group.
func GroupLogFile(group string) string {
	return safeFilename(group) + ".log"
}
