//go:build !darwin || !cgo

package permissions

// Only macOS gates capture and input behind privacy permissions.
func check(Permission, bool) bool { return true }
