// snapcraftls/snapcraftls_errors.go
// Contains exported error definitions for the snapcraftls package.
package snapcraftls

import "errors"

// =============================================================================
// Exported Errors
// =============================================================================

var (
	// ErrConfig indicates non-fatal errors during config loading or processing.
	ErrConfig = errors.New("configuration error")

	// ErrInvalidConfig indicates a configuration value is invalid after validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSchemaLoad indicates the bundled or configured schema document could not
	// be read. The schema index itself never fails to build; this error only
	// surfaces when an explicitly configured schema file is unreadable.
	ErrSchemaLoad = errors.New("schema load failed")

	// ErrStateStore indicates a persisted editor-state operation failed.
	ErrStateStore = errors.New("state store operation failed")

	// ErrPositionConversion indicates failure converting between position formats
	// (e.g., LSP UTF-16 <-> byte offset).
	ErrPositionConversion = errors.New("position conversion failed")

	// ErrInvalidPositionInput indicates input position values (line/col) are invalid.
	ErrInvalidPositionInput = errors.New("invalid input position")

	// ErrPositionOutOfRange indicates a position is outside the valid bounds of the
	// document or line.
	ErrPositionOutOfRange = errors.New("position out of range")

	// ErrInvalidUTF8 indicates an invalid UTF-8 sequence was encountered.
	ErrInvalidUTF8 = errors.New("invalid utf-8 sequence")

	// ErrInvalidURI indicates a document URI is invalid or uses an unsupported scheme.
	ErrInvalidURI = errors.New("invalid document URI")

	// ErrUnknownCommand indicates an executeCommand request named a command this
	// server does not provide.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUnknownCategory indicates a documentation category outside the known set.
	ErrUnknownCategory = errors.New("unknown documentation category")
)
