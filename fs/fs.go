// Package fs holds some utilities for manipulating the file system
package fs

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

const defaultDirectoryPermission = 0o740

const secureFilePermission = 0o600

// HomeFolder returns the home folder of the current user, or the working
// directory when it cannot be determined.
func HomeFolder() string {
	u, err := user.Current()
	if err != nil {
		return "."
	}
	return u.HomeDir
}

// DefaultConfigFolder returns the folder vmauth keeps its key material in.
func DefaultConfigFolder() string {
	return filepath.Join(HomeFolder(), ".vmauth")
}

// CreateSecureFolder makes sure the folder exists with owner-only write
// permissions, creating it if needed.
func CreateSecureFolder(folder string) (string, error) {
	exists, err := Exists(folder)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := os.MkdirAll(folder, defaultDirectoryPermission); err != nil {
			return "", fmt.Errorf("creating folder %s: %w", folder, err)
		}
		return folder, nil
	}
	info, err := os.Lstat(folder)
	if err != nil {
		return "", fmt.Errorf("checking folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a folder", folder)
	}
	if info.Mode().Perm()&0o022 != 0 {
		return "", fmt.Errorf("folder %s is writable by other users (%#o)", folder, info.Mode().Perm())
	}
	return folder, nil
}

// Exists returns whether the given file or directory exists.
func Exists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}

// CreateSecureFile creates (or truncates) a file with read-write permission
// for the user only and returns the file handle.
func CreateSecureFile(file string) (*os.File, error) {
	fd, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, secureFilePermission)
	if err != nil {
		return nil, err
	}
	// the file may have existed with looser permissions
	if err := fd.Chmod(secureFilePermission); err != nil {
		fd.Close()
		return nil, err
	}
	return fd, nil
}
