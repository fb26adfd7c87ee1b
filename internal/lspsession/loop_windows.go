//go:build windows

package lspsession

import (
	"os"

	"golang.org/x/sys/windows"
)

// msvcrt's _setmode(fd, _O_BINARY) stops the C runtime from translating
// \n to \r\n on stdin/stdout; grounded on the original's WIN32-specific
// stdio handling in main.cpp, ported here via x/sys/windows' lazy DLL
// loading the same way zerocopy_windows_file.go reaches native Win32
// calls not exposed by the stdlib.
const oBinary = 0x8000

var (
	msvcrt  = windows.NewLazySystemDLL("msvcrt.dll")
	setmode = msvcrt.NewProc("_setmode")
)

func setBinaryMode() error {
	for _, fd := range []uintptr{os.Stdin.Fd(), os.Stdout.Fd()} {
		if _, _, err := setmode.Call(fd, oBinary); err != nil && err != windows.ERROR_SUCCESS {
			return err
		}
	}
	return nil
}
