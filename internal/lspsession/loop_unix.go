//go:build !windows

package lspsession

// Unix terminals and pipes never translate newlines, so there is nothing to
// switch.
func setBinaryMode() error {
	return nil
}
