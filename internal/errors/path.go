// ABOUTME: Filesystem path errors raised while preparing startup directories
// ABOUTME: Used when the database directory cannot be created

package errors

import "fmt"

type DirectoryError struct {
	Purpose       string
	AttemptedPath string
	UnderlyingErr error
}

func NewDirectoryError(purpose, path string, err error) *DirectoryError {
	return &DirectoryError{
		Purpose:       purpose,
		AttemptedPath: path,
		UnderlyingErr: err,
	}
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("cannot create %s directory at %s: %v", e.Purpose, e.AttemptedPath, e.UnderlyingErr)
}

func (e *DirectoryError) Unwrap() error {
	return e.UnderlyingErr
}
