// Package platform provides OS-aware helpers for paths and local networking.
// All code that needs to behave differently per OS must use this package.
package platform

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
)

// IsWindows returns true when running on Windows.
func IsWindows() bool { return runtime.GOOS == "windows" }

// IsMac returns true when running on macOS.
func IsMac() bool { return runtime.GOOS == "darwin" }

// DefaultWorkDir returns the OS-appropriate data directory for jejecipher.
//
//	Linux:   ~/.local/share/jejecipher
//	macOS:   ~/Library/Application Support/Jejecipher
//	Windows: %APPDATA%\Jejecipher
//
// If WORK_DIR env var is set, that takes priority (used in Docker).
func DefaultWorkDir() string {
	if env := os.Getenv("WORK_DIR"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Jejecipher")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Jejecipher")
	default:
		return filepath.Join(home, ".local", "share", "jejecipher")
	}
}

// DataPath returns a path inside the default work directory.
//
// Example: DataPath("jejecipher.db") → ~/.local/share/jejecipher/jejecipher.db
func DataPath(parts ...string) string {
	return filepath.Join(append([]string{DefaultWorkDir()}, parts...)...)
}

// EnsureDir creates a directory and all parents if they don't exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("platform.EnsureDir: %w", err)
	}
	return nil
}

// PortFree reports whether a TCP port can be bound on all interfaces.
func PortFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// LANAddrs returns the non-loopback IPv4 addresses of interfaces that are up.
func LANAddrs() []string {
	var ips []string
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
				ips = append(ips, ip4.String())
			}
		}
	}
	return ips
}
