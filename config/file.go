package config

// file.go - configuration loading from a YAML file.
//
// A single file, named by --config or VTRELAY_CONFIG.  There is no
// search path: without either, no file is read.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML file at path onto cfg.  Keys absent from
// the file leave cfg unchanged; unknown keys are an error so typos do
// not pass silently.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// ReadPassword returns the first line of the file at path, without its
// line ending.  An empty password is an error.
func ReadPassword(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("password file: %w", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return "", fmt.Errorf("password file %s is empty", path)
	}
	return line, nil
}

// FilePath returns the config file named in args (--config PATH or
// --config=PATH), falling back to VTRELAY_CONFIG.  Flags are scanned
// before parsing because the file must be loaded first so that flags
// override it.
func FilePath(args []string) string {
	for i, a := range args {
		switch {
		case a == "--":
			return os.Getenv(EnvConfigFile)
		case a == "--config" && i+1 < len(args):
			return args[i+1]
		case len(a) > len("--config=") && a[:len("--config=")] == "--config=":
			return a[len("--config="):]
		}
	}
	return os.Getenv(EnvConfigFile)
}
