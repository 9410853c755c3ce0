package failure

import "fmt"

// FileNotFoundError is returned when a file or resource cannot be located.
type FileNotFoundError struct {
	CoreError
	FilePath string
}

// NewFileNotFoundError creates a not-found failure for path.
func NewFileNotFoundError(path string, ctx Context, cause error) *FileNotFoundError {
	base := Context{
		Operation:   "locateFile",
		Resource:    path,
		UserMessage: fmt.Sprintf("The file %q could not be found", path),
	}
	return &FileNotFoundError{
		CoreError: newError("File not found: "+path, CodeFileNotFound, base.merge(ctx), cause),
		FilePath:  path,
	}
}

// ForOperation reports a file required by operation.
func ForOperation(path, operation string, cause error) *FileNotFoundError {
	return NewFileNotFoundError(path, Context{
		Operation:   operation,
		UserMessage: "Could not find the required file for " + operation,
	}, cause)
}

// ForTasksFile reports a missing tasks file.
func ForTasksFile(path string, cause error) *FileNotFoundError {
	return NewFileNotFoundError(path, Context{
		Operation:   "loadTasksFile",
		UserMessage: "The tasks file could not be found. Please check the file path and try again.",
	}, cause)
}

// ForConfigFile reports a missing configuration file.
func ForConfigFile(path string, cause error) *FileNotFoundError {
	return NewFileNotFoundError(path, Context{
		Operation:   "loadConfigFile",
		UserMessage: "The configuration file could not be found. Please check your setup.",
	}, cause)
}
