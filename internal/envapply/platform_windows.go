//go:build windows

package envapply

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// NewApplier returns the applier for the current OS.
func NewApplier(envDir string, logger zerolog.Logger) *Applier {
	return &Applier{
		Backends: []Backend{RegistryBackend{}, FileBackend{Dir: envDir}},
		FoldCase: true,
		Logger:   logger,
	}
}

// RegistryBackend edits HKCU\Environment and broadcasts WM_SETTINGCHANGE so
// new processes see the change without a logoff. Only variables hudo has
// touched are reported by Load; PATH is always read in full.
type RegistryBackend struct{}

const envKey = `Environment`

func (RegistryBackend) Name() string { return "registry" }

func (RegistryBackend) Load() (Snapshot, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, envKey, registry.QUERY_VALUE)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open HKCU\\Environment: %w", err)
	}
	defer k.Close()

	snap := Snapshot{Vars: map[string]string{}}
	raw, _, err := k.GetStringValue("Path")
	if err != nil && !errors.Is(err, registry.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("read Path: %w", err)
	}
	for _, entry := range strings.Split(raw, ";") {
		if entry = strings.TrimSpace(entry); entry != "" {
			snap.Path = append(snap.Path, entry)
		}
	}

	names, err := k.ReadValueNames(-1)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list values: %w", err)
	}
	for _, name := range names {
		if strings.EqualFold(name, "Path") {
			continue
		}
		if v, _, err := k.GetStringValue(name); err == nil {
			snap.Vars[name] = v
		}
	}
	return snap, nil
}

func (RegistryBackend) Save(s Snapshot) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, envKey, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open HKCU\\Environment: %w", err)
	}
	defer k.Close()

	if err := k.SetExpandStringValue("Path", strings.Join(s.Path, ";")); err != nil {
		return fmt.Errorf("write Path: %w", err)
	}

	names, err := k.ReadValueNames(-1)
	if err != nil {
		return fmt.Errorf("list values: %w", err)
	}
	for _, name := range names {
		if strings.EqualFold(name, "Path") {
			continue
		}
		if _, keep := s.Vars[name]; keep {
			continue
		}
		// Non-string values never enter a Snapshot; leave them alone.
		if _, _, err := k.GetStringValue(name); err != nil {
			continue
		}
		if err := k.DeleteValue(name); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	for name, value := range s.Vars {
		if cur, _, err := k.GetStringValue(name); err == nil && cur == value {
			continue
		}
		if err := k.SetExpandStringValue(name, value); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	broadcastSettingChange()
	return nil
}

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	procSendMessageTimeout = user32.NewProc("SendMessageTimeoutW")
)

const (
	hwndBroadcast   = 0xffff
	wmSettingChange = 0x001A
	smtoAbortIfHung = 0x0002
)

func broadcastSettingChange() {
	param, err := syscall.UTF16PtrFromString("Environment")
	if err != nil {
		return
	}
	var result uintptr
	_, _, _ = procSendMessageTimeout.Call(
		hwndBroadcast,
		wmSettingChange,
		0,
		uintptr(unsafe.Pointer(param)),
		smtoAbortIfHung,
		5000,
		uintptr(unsafe.Pointer(&result)),
	)
}
