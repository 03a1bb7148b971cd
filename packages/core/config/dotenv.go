package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ReadEnvFile parses a dotenv file. Lines are KEY=value, optionally prefixed
// with "export" and with the value in single or double quotes; blank lines and
// # comments are ignored. ${VAR} in unquoted and double-quoted values expands
// against keys defined earlier in the file, then the process environment.
func ReadEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening env file")
	}
	defer file.Close()

	vars := make(map[string]string)
	lookup := func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	}

	scanner := bufio.NewScanner(file)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, errors.Errorf("%s:%d: expected KEY=value", path, n)
		}

		value = strings.TrimSpace(value)
		switch {
		case len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\'':
			value = value[1 : len(value)-1]
		case len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"':
			value = os.Expand(value[1:len(value)-1], lookup)
		default:
			if i := strings.Index(value, " #"); i >= 0 {
				value = strings.TrimSpace(value[:i])
			}
			value = os.Expand(value, lookup)
		}
		vars[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading env file")
	}

	return vars, nil
}
