package filesys

import "strings"

// Paths are absolute: they start with "/" and name slash separated
// components down the directory tree. "/" alone names the root
// directory.

// splitComponents validates a path and returns its components. The
// root path returns an empty slice.
func splitComponents(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, ErrorInvalidPath
	}
	if path == "/" {
		return nil, nil
	}
	path = strings.TrimSuffix(path, "/")
	parts := strings.Split(path[1:], "/")
	for _, p := range parts {
		if p == "" {
			return nil, ErrorInvalidPath
		}
	}
	return parts, nil
}

// SplitParent splits an absolute path into the path of its parent
// directory and its leaf name, so create and remove can load the
// parent table and operate on the leaf.
func SplitParent(path string) (parent, leaf string, err error) {
	parts, err := splitComponents(path)
	if err != nil {
		return "", "", err
	}
	if len(parts) == 0 {
		// the root has no parent
		return "", "", ErrorInvalidPath
	}
	leaf = parts[len(parts)-1]
	if len(parts) == 1 {
		return "/", leaf, nil
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/"), leaf, nil
}

// resolve walks path from the root directory and returns the sector of
// the named entity's header, along with whether it is a directory.
func (fs *FileSystem) resolve(path string) (sector int, isDir bool, err error) {
	parts, err := splitComponents(path)
	if err != nil {
		return -1, false, err
	}
	sector = DirectorySector
	isDir = true
	dir := NewDirectory(NumDirEntries)
	dirFile := fs.directoryFile
	for i, name := range parts {
		if err := dir.FetchFrom(dirFile); err != nil {
			return -1, false, err
		}
		s := dir.Find(name)
		if s == -1 {
			return -1, false, ErrorNotFound
		}
		sector = int(s)
		isDir = dir.IsDirectory(name)
		if i < len(parts)-1 {
			if !isDir {
				return -1, false, ErrorNotFound
			}
			dirFile, err = newOpenFile(fs.d, sector)
			if err != nil {
				return -1, false, err
			}
		}
	}
	return sector, isDir, nil
}
