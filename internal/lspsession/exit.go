package lspsession

import "os"

// ProcessExitHandler terminates the running process, mirroring the
// original server's exit(EXIT_SUCCESS)/exit(EXIT_FAILURE) behavior on the
// "exit" notification.
type ProcessExitHandler struct{}

// Exit terminates the process with status 0 on success, 1 otherwise.
func (ProcessExitHandler) Exit(success bool) {
	if success {
		os.Exit(0)
	}
	os.Exit(1)
}
