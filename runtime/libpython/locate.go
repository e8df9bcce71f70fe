package libpython

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// probe asks the interpreter for the variables that name its shared
// library. Printed one per line so the output survives any sitecustomize
// noise on stderr.
const probe = `import sysconfig
print(sysconfig.get_config_var("LIBDIR") or "")
print(sysconfig.get_config_var("INSTSONAME") or "")
print(sysconfig.get_config_var("LDLIBRARY") or "")
print(sysconfig.get_config_var("VERSION") or "")`

// Locate resolves the path of the shared interpreter library. An
// explicitly configured path is trusted as-is; otherwise the discovery
// executable is queried for its build configuration and the candidate
// names are probed on disk.
func Locate(cfg Config) (string, error) {
	if cfg.Library != "" {
		if _, err := os.Stat(cfg.Library); err != nil {
			return "", fmt.Errorf("configured library %s: %w", cfg.Library, err)
		}
		return cfg.Library, nil
	}

	out, err := exec.Command(cfg.Python, "-c", probe).Output()
	if err != nil {
		return "", fmt.Errorf("cannot query %s for its library: %w", cfg.Python, err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 4 {
		return "", fmt.Errorf("unexpected discovery output from %s", cfg.Python)
	}
	libdir, instsoname, ldlibrary, version := lines[0], lines[1], lines[2], lines[3]

	var candidates []string
	for _, name := range []string{instsoname, ldlibrary} {
		if name != "" {
			candidates = append(candidates, filepath.Join(libdir, name))
		}
	}
	if version != "" {
		candidates = append(candidates,
			filepath.Join(libdir, "libpython"+version+".so"),
			filepath.Join(libdir, "libpython"+version+".dylib"),
		)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no interpreter library found near %s (tried %s)",
		libdir, strings.Join(candidates, ", "))
}
