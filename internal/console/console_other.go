//go:build !windows

// Package console detects whether the process was started from a terminal and
// installs a reliable Ctrl+C handler. On non-Windows platforms both concerns
// are handled by the OS and the standard library, so these are stubs.
package console

// IsRunningFromConsole always reports true outside Windows.
func IsRunningFromConsole() bool {
	return true
}

// SetupConsoleHandler is a no-op outside Windows; os.Interrupt works there.
func SetupConsoleHandler(shutdownChan chan struct{}) func() {
	return func() {}
}
