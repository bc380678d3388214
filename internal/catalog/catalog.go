package catalog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/portrecon/internal/config"
	"github.com/nao1215/portrecon/internal/model"
)

// DefaultFileName is the conventional name of the service table.
const DefaultFileName = "nmap-services"

// systemPaths are well-known install locations of the nmap service table.
var systemPaths = []string{
	"/usr/share/nmap/nmap-services",
	"/usr/local/share/nmap/nmap-services",
}

// Catalog maps TCP port numbers to canonical service names.
// It is built once and only read afterwards, so it is safe for
// concurrent use without locking. A nil *Catalog behaves as empty.
type Catalog struct {
	services map[int]string
}

// New creates a catalog from an existing port to name mapping.
// The map is copied.
func New(services map[int]string) *Catalog {
	c := &Catalog{services: make(map[int]string, len(services))}
	for port, name := range services {
		c.services[port] = name
	}
	return c
}

// Empty returns a catalog with no entries.
func Empty() *Catalog {
	return &Catalog{services: map[int]string{}}
}

// Parse reads an nmap-services style table.
//
// Each line is "<name> <port>/<protocol> [extra...]". Blank lines, lines
// starting with '#', malformed lines and non-TCP entries are skipped. When
// a port appears more than once, the first entry wins.
func Parse(r io.Reader) (*Catalog, error) {
	c := Empty()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name, port, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := c.services[port]; !exists {
			c.services[port] = name
		}
	}
	if err := scanner.Err(); err != nil {
		return c, fmt.Errorf("failed to read service table: %w", err)
	}
	return c, nil
}

// parseLine extracts the service name and TCP port from one table line.
func parseLine(line string) (string, int, bool) {
	text := strings.TrimSpace(line)
	if text == "" || strings.HasPrefix(text, "#") {
		return "", 0, false
	}

	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", 0, false
	}

	portStr, proto, ok := strings.Cut(fields[1], "/")
	if !ok || !strings.EqualFold(proto, "tcp") {
		return "", 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > config.MaxPort {
		return "", 0, false
	}
	return fields[0], port, true
}

// Load opens path and parses it.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided table path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open service table: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// LoadOrEmpty loads the table at path. Any failure, including an empty
// path, is logged and yields an empty catalog so that the scan can proceed
// with every service reported as "unknown".
func LoadOrEmpty(path string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		logger.Warn("no service table found, service names will be unknown")
		return Empty()
	}

	c, err := Load(path)
	if err != nil {
		logger.Warn("failed to load service table, service names will be unknown",
			"path", path, "error", err)
		return Empty()
	}
	logger.Debug("service table loaded", "path", path, "entries", c.Len())
	return c
}

// Find returns the service table path to use.
//
// Search order:
//  1. explicit, if non-empty (returned even when it does not exist, so
//     that the load failure is reported)
//  2. nmap-services in the current directory
//  3. nmap-services in the XDG data directory
//  4. the system nmap install locations
//
// It returns an empty string when no table exists.
func Find(explicit string) string {
	if explicit != "" {
		return explicit
	}

	candidates := []string{DefaultFileName, filepath.Join(config.XDGDataDir(), DefaultFileName)}
	candidates = append(candidates, systemPaths...)
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// Lookup returns the service name for port, or "unknown".
func (c *Catalog) Lookup(port int) string {
	if c == nil {
		return model.UnknownService
	}
	if name, ok := c.services[port]; ok {
		return name
	}
	return model.UnknownService
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.services)
}
