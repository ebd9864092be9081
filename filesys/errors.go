package filesys

import "errors"

// Sentinel errors returned by file system operations. Operations that
// fail with any of these have rolled back: nothing was written to disk.
var (
	ErrorNotFound          = errors.New("file or directory not found")
	ErrorAlreadyExists     = errors.New("file or directory already exists")
	ErrorOutOfSpace        = errors.New("out of disk space")
	ErrorDirectoryFull     = errors.New("directory is full")
	ErrorInvalidPath       = errors.New("invalid path")
	ErrorNotDirectory      = errors.New("not a directory")
	ErrorIsDirectory       = errors.New("is a directory")
	ErrorDirectoryNotEmpty = errors.New("directory not empty")
	ErrorFileTooBig        = errors.New("file exceeds maximum addressable size")
)
