// snapcraftls/snapcraftls_utils.go
// Shared helpers: LSP position conversion, config file handling, URI checks.
package snapcraftls

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ============================================================================
// LSP Position Conversion Helpers
// ============================================================================

// LspPositionToLineCol converts a 0-based LSP line/character (UTF-16) position
// into a 0-based line and 0-based byte column within that line.
func LspPositionToLineCol(content []byte, lspPos LSPPosition) (line, col int, err error) {
	if content == nil {
		return 0, 0, fmt.Errorf("%w: document content is nil", ErrPositionConversion)
	}
	targetLine := int(lspPos.Line)
	targetUTF16Char := int(lspPos.Character)
	if targetLine < 0 {
		return 0, 0, fmt.Errorf("%w: line number %d must be >= 0", ErrInvalidPositionInput, targetLine)
	}
	if targetUTF16Char < 0 {
		return 0, 0, fmt.Errorf("%w: character offset %d must be >= 0", ErrInvalidPositionInput, targetUTF16Char)
	}

	currentLine := 0
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineTextBytes := scanner.Bytes()
		if currentLine == targetLine {
			byteOffsetInLine, convErr := Utf16OffsetToBytes(lineTextBytes, targetUTF16Char)
			if convErr != nil {
				if errors.Is(convErr, ErrPositionOutOfRange) { // Clamp to line end on out-of-range error.
					slog.Warn("UTF16 offset out of range, clamping to line end",
						"line", targetLine, "char", targetUTF16Char, "error", convErr)
					byteOffsetInLine = len(lineTextBytes)
				} else {
					return 0, 0, fmt.Errorf("failed converting UTF16 to byte offset on line %d: %w", currentLine, convErr)
				}
			}
			return targetLine, byteOffsetInLine, nil
		}
		currentLine++
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("%w: error scanning document content: %w", ErrPositionConversion, err)
	}

	// Cursor on the line after the last line of content is tolerated at column 0.
	if currentLine == targetLine && targetUTF16Char == 0 {
		return targetLine, 0, nil
	}
	return 0, 0, fmt.Errorf("%w: LSP line %d not found in document (total lines scanned %d)", ErrPositionOutOfRange, targetLine, currentLine)
}

// Utf16OffsetToBytes converts a 0-based UTF-16 offset within a line to a 0-based byte offset.
func Utf16OffsetToBytes(line []byte, utf16Offset int) (int, error) {
	if utf16Offset < 0 {
		return 0, fmt.Errorf("%w: invalid utf16Offset: %d (must be >= 0)", ErrInvalidPositionInput, utf16Offset)
	}
	if utf16Offset == 0 {
		return 0, nil
	}

	byteOffset := 0
	currentUTF16Offset := 0
	for byteOffset < len(line) {
		if currentUTF16Offset >= utf16Offset {
			break
		}
		r, size := utf8.DecodeRune(line[byteOffset:])
		if r == utf8.RuneError && size <= 1 {
			return byteOffset, fmt.Errorf("%w at byte offset %d", ErrInvalidUTF8, byteOffset)
		}
		utf16Units := 1
		if r > 0xFFFF {
			utf16Units = 2 // Surrogate pairs require 2 units.
		}
		if currentUTF16Offset+utf16Units > utf16Offset {
			break
		}
		currentUTF16Offset += utf16Units
		byteOffset += size
		if currentUTF16Offset == utf16Offset {
			break
		}
	}
	if currentUTF16Offset < utf16Offset {
		return len(line), fmt.Errorf("%w: utf16Offset %d is beyond the line length in UTF-16 units (%d)", ErrPositionOutOfRange, utf16Offset, currentUTF16Offset)
	}
	return byteOffset, nil
}

// ByteColToUTF16 converts a 0-based byte column within a line to a 0-based
// UTF-16 offset, for building LSP ranges from classifier byte ranges.
func ByteColToUTF16(line []byte, byteCol int) (uint32, error) {
	if byteCol < 0 {
		return 0, fmt.Errorf("%w: invalid byte column %d", ErrInvalidPositionInput, byteCol)
	}
	if byteCol > len(line) {
		byteCol = len(line)
	}
	utf16Offset := 0
	byteOffset := 0
	for byteOffset < byteCol {
		r, size := utf8.DecodeRune(line[byteOffset:])
		if r == utf8.RuneError && size <= 1 {
			return uint32(utf16Offset), fmt.Errorf("%w at byte offset %d", ErrInvalidUTF8, byteOffset)
		}
		if r > 0xFFFF {
			utf16Offset += 2
		} else {
			utf16Offset++
		}
		byteOffset += size
	}
	return uint32(utf16Offset), nil
}

// ============================================================================
// Document URI Helpers
// ============================================================================

var snapcraftFileNames = map[string]struct{}{
	"snapcraft.yaml": {},
	"snapcraft.yml":  {},
}

// IsSnapcraftDocument reports whether the URI names a snapcraft project file.
// Hover requests for any other document are answered with an empty result
// without consulting the classifier.
func IsSnapcraftDocument(uri DocumentURI) bool {
	parsed, err := url.Parse(string(uri))
	if err != nil {
		return false
	}
	base := path.Base(parsed.Path)
	_, ok := snapcraftFileNames[strings.ToLower(base)]
	return ok
}

// ============================================================================
// Logging Helpers
// ============================================================================

// ParseLogLevel converts a config log-level string into a slog.Level.
func ParseLogLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", levelStr)
	}
}

// ============================================================================
// Config File Helpers
// ============================================================================

// GetConfigPaths determines the primary (user config dir) and secondary (home
// dotfile) candidate locations for the config file.
func GetConfigPaths(logger *slog.Logger) (primary, secondary string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	userConfigDir, configErr := os.UserConfigDir()
	if configErr == nil {
		primary = filepath.Join(userConfigDir, configDirName, defaultConfigFileName)
	} else {
		logger.Warn("Could not determine user config directory", "error", configErr)
	}
	homeDir, homeErr := os.UserHomeDir()
	if homeErr == nil {
		secondary = filepath.Join(homeDir, "."+configDirName, defaultConfigFileName)
	} else {
		logger.Warn("Could not determine user home directory", "error", homeErr)
	}
	if primary == "" && secondary == "" {
		err = fmt.Errorf("%w: cannot determine config directory or home directory", ErrConfig)
	}
	return primary, secondary, err
}

// LoadAndMergeConfig reads the JSON config file at path and merges any set
// fields into cfg. Returns true if a file existed and was merged.
func LoadAndMergeConfig(path string, cfg *Config, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading config file failed: %w", err)
	}

	var fileCfg FileConfig
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return true, fmt.Errorf("parsing config file JSON failed: %w", err)
	}

	merged := 0
	if fileCfg.LogLevel != nil {
		cfg.LogLevel = *fileCfg.LogLevel
		merged++
	}
	if fileCfg.EnableHover != nil {
		cfg.EnableHover = *fileCfg.EnableHover
		merged++
	}
	if fileCfg.SchemaPath != nil {
		cfg.SchemaPath = *fileCfg.SchemaPath
		merged++
	}
	if fileCfg.MemoryCacheTTLSeconds != nil {
		cfg.MemoryCacheTTLSeconds = *fileCfg.MemoryCacheTTLSeconds
		merged++
	}
	logger.Debug("Merged config file", "path", path, "fields_merged", merged)
	return true, nil
}

// WriteDefaultConfig writes cfg as indented JSON to path, creating parent
// directories as needed.
func WriteDefaultConfig(path string, cfg Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory failed: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling default config failed: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing default config failed: %w", err)
	}
	logger.Info("Wrote default config file", "path", path)
	return nil
}
