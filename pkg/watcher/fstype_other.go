//go:build !linux && !darwin

package watcher

// Without statfs the mount cannot be classified; the watcher then trusts
// fsnotify up front and falls back to polling only at runtime.
func detectFilesystemType(string) FilesystemType { return FSTypeUnknown }
