//go:build windows

// Package console detects whether the process was started from a terminal and
// installs a reliable Ctrl+C handler. Go's os.Interrupt delivery can be
// flaky on Windows once SDL3 locks the main OS thread, so the handler goes
// through SetConsoleCtrlHandler directly.
package console

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"unsafe"
)

var (
	kernel32                       = syscall.NewLazyDLL("kernel32.dll")
	procGetConsoleWindow           = kernel32.NewProc("GetConsoleWindow")
	procAllocConsole               = kernel32.NewProc("AllocConsole")
	procFreeConsole                = kernel32.NewProc("FreeConsole")
	procGetStdHandle               = kernel32.NewProc("GetStdHandle")
	procCreateToolhelp32Snapshot   = kernel32.NewProc("CreateToolhelp32Snapshot")
	procProcess32First             = kernel32.NewProc("Process32First")
	procProcess32Next              = kernel32.NewProc("Process32Next")
	procOpenProcess                = kernel32.NewProc("OpenProcess")
	procQueryFullProcessImageNameW = kernel32.NewProc("QueryFullProcessImageNameW")
	procSetConsoleCtrlHandler      = kernel32.NewProc("SetConsoleCtrlHandler")
)

const (
	th32csSnapProcess       = 0x00000002
	processQueryLimitedInfo = 0x1000
	maxPath                 = 260
	ctrlCEvent              = 0
	ctrlBreakEvent          = 1
	stdInputHandle          = ^uint32(0) - 10 + 1
	stdOutputHandle         = ^uint32(0) - 11 + 1
	stdErrorHandle          = ^uint32(0) - 12 + 1
)

type processEntry32 struct {
	DwSize              uint32
	CntUsage            uint32
	Th32ProcessID       uint32
	Th32DefaultHeapID   uintptr
	Th32ModuleID        uint32
	CntThreads          uint32
	Th32ParentProcessID uint32
	PcPriClassBase      int32
	DwFlags             uint32
	SzExeFile           [maxPath]uint16
}

// IsRunningFromConsole reports whether the process was launched from a
// terminal. Double-clicked (explorer.exe parent) processes get their
// auto-created console freed so no window flashes; GUI builds launched from a
// terminal get a console allocated and std streams redirected.
func IsRunningFromConsole() bool {
	if hasConsoleWindow() {
		if isLaunchedFromExplorer() {
			procFreeConsole.Call()
			return false
		}
		return true
	}

	if isLaunchedFromExplorer() {
		return false
	}

	procAllocConsole.Call()
	redirectStdStreams()
	return true
}

func hasConsoleWindow() bool {
	hwnd, _, _ := procGetConsoleWindow.Call()
	return hwnd != 0
}

// redirectStdStreams points os.Stdout/Stderr/Stdin at the freshly allocated
// console. Go captures the std handles at startup, before the console
// existed.
func redirectStdStreams() {
	nStdout, _, _ := procGetStdHandle.Call(uintptr(stdOutputHandle))
	nStderr, _, _ := procGetStdHandle.Call(uintptr(stdErrorHandle))
	nStdin, _, _ := procGetStdHandle.Call(uintptr(stdInputHandle))

	if nStdout == 0 || nStderr == 0 {
		return
	}

	os.Stdout = os.NewFile(uintptr(nStdout), "/dev/stdout")
	os.Stderr = os.NewFile(uintptr(nStderr), "/dev/stderr")
	if nStdin != 0 {
		os.Stdin = os.NewFile(uintptr(nStdin), "/dev/stdin")
	}
	log.SetOutput(os.Stderr)
}

func isLaunchedFromExplorer() bool {
	parentPID := getParentProcessID(os.Getpid())
	if parentPID == 0 {
		return false
	}
	name := getProcessImageName(parentPID)
	if name == "" {
		return false
	}
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '\\' || name[i] == '/' {
			name = name[i+1:]
			break
		}
	}
	return strings.EqualFold(name, "explorer.exe")
}

func getParentProcessID(pid int) int {
	handle, _, _ := procCreateToolhelp32Snapshot.Call(uintptr(th32csSnapProcess), 0)
	if handle == uintptr(syscall.InvalidHandle) {
		return 0
	}
	defer syscall.CloseHandle(syscall.Handle(handle))

	var entry processEntry32
	entry.DwSize = uint32(unsafe.Sizeof(entry))

	ret, _, _ := procProcess32First.Call(handle, uintptr(unsafe.Pointer(&entry)))
	if ret == 0 {
		return 0
	}
	for {
		if int(entry.Th32ProcessID) == pid {
			return int(entry.Th32ParentProcessID)
		}
		ret, _, _ = procProcess32Next.Call(handle, uintptr(unsafe.Pointer(&entry)))
		if ret == 0 {
			break
		}
	}
	return 0
}

func getProcessImageName(pid int) string {
	hProcess, _, _ := procOpenProcess.Call(uintptr(processQueryLimitedInfo), 0, uintptr(pid))
	if hProcess == 0 {
		return ""
	}
	defer syscall.CloseHandle(syscall.Handle(hProcess))

	var nameBuf [maxPath]uint16
	size := uint32(maxPath)
	ret, _, _ := procQueryFullProcessImageNameW.Call(hProcess, 0, uintptr(unsafe.Pointer(&nameBuf[0])), uintptr(unsafe.Pointer(&size)))
	if ret == 0 {
		return ""
	}
	return syscall.UTF16ToString(nameBuf[:size])
}

type consoleHandlerState struct {
	closed       int32
	shutdownChan chan struct{}
	callbackFn   uintptr
}

// Callback state must outlive the registration; Windows holds the pointer.
var globalHandlerState *consoleHandlerState

// SetupConsoleHandler installs a console control handler that closes
// shutdownChan on Ctrl+C or Ctrl+Break. It returns a re-register function to
// call after SDL initialization, which replaces the handler chain.
func SetupConsoleHandler(shutdownChan chan struct{}) func() {
	globalHandlerState = &consoleHandlerState{shutdownChan: shutdownChan}

	globalHandlerState.callbackFn = syscall.NewCallback(func(ctrlType uint32) uintptr {
		if ctrlType == ctrlCEvent || ctrlType == ctrlBreakEvent {
			if atomic.CompareAndSwapInt32(&globalHandlerState.closed, 0, 1) {
				close(globalHandlerState.shutdownChan)
			}
			return 1
		}
		return 0
	})

	registerHandler := func() {
		if globalHandlerState == nil {
			return
		}
		ret, _, _ := procSetConsoleCtrlHandler.Call(globalHandlerState.callbackFn, 1)
		if ret == 0 {
			log.Printf("Warning: failed to set Windows console control handler")
		}
	}

	registerHandler()
	return registerHandler
}
