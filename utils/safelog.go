// utils/safelog.go
// ============================================================================
// SAFE LOGGING - structured logging with masking of farm addresses and
// contact data in production.
// ============================================================================

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

var (
	// IsProduction enables masking of sensitive values in log output.
	IsProduction = os.Getenv("GIN_MODE") == "release" ||
		os.Getenv("ENVIRONMENT") == "production" ||
		os.Getenv("ENV") == "production"

	// Log is the process-wide logger. It is usable before InitLogger runs.
	Log = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(&LineFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// LineFormatter renders "[TIME] [LEVL] [file:line] msg key=value".
type LineFormatter struct{}

// Format implements logrus.Formatter.
func (f *LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var fileLine string
	if entry.HasCaller() {
		fileLine = fmt.Sprintf("%s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] [%s] %s", entry.Time.Format("2006-01-02 15:04:05"), level, fileLine, MaskString(entry.Message))
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%s", k, MaskString(fmt.Sprint(entry.Data[k])))
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InitLogger sets level and output of Log. When filePath is set, output is
// written to both stdout and the file.
func InitLogger(levelStr string, filePath string) error {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	writers := []io.Writer{os.Stdout}
	if filePath != "" {
		if dir := filepath.Dir(filePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}
	Log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// ============================================================================
// MASKING
// ============================================================================

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRegex  = regexp.MustCompile(`\(?\b\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}\b`)
	streetRegex = regexp.MustCompile(`(?i)\b\d{1,6}\s+[a-z0-9.\s]{2,40}\b(road|rd|street|st|avenue|ave|lane|ln|drive|dr|highway|hwy|route|rte)\b\.?`)
)

// MaskString hides emails, phone numbers and street addresses in production.
func MaskString(input string) string {
	if !IsProduction {
		return input
	}
	result := emailRegex.ReplaceAllString(input, "***@***.***")
	result = phoneRegex.ReplaceAllString(result, "***-***-****")
	result = streetRegex.ReplaceAllString(result, "*** street ***")
	return result
}

// MaskLocation returns the part of an address that is safe to log:
// city and state only, regardless of mode.
func MaskLocation(city, state string) string {
	city = strings.TrimSpace(city)
	state = strings.ToUpper(strings.TrimSpace(state))
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case state != "":
		return state
	case city != "":
		return city
	default:
		return "unknown location"
	}
}

// GetEnvMode returns "production" or "development".
func GetEnvMode() string {
	if IsProduction {
		return "production"
	}
	return "development"
}

// LogStartup prints the startup banner.
func LogStartup(appName string, version string, port string) {
	Log.Infof("🚀 %s v%s starting...", appName, version)
	Log.Infof("   Mode: %s", GetEnvMode())
	Log.Infof("   Port: %s", port)
	Log.Infof("   Log Level: %s", Log.GetLevel())
	if IsProduction {
		Log.Info("   ⚠️  Production mode: addresses and contacts are masked in logs")
	}
}
