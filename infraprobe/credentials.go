package infraprobe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Well-known keys of the credentials file written by provisioning.
const (
	FileKeyRootToken     = "root_token"
	FileKeyDBUser        = "db_user"
	FileKeyDBPassword    = "db_password"
	FileKeyDBName        = "db_name"
	FileKeyRedisUser     = "redis_user"
	FileKeyRedisPassword = "redis_password"
)

// DefaultCredentialsFile is the name of the file produced by Vault
// initialization.
const DefaultCredentialsFile = "vault_init_output.json"

// CredentialsFile is the decoded credentials JSON object. Values are read
// verbatim; non-string scalars are rendered with fmt.
type CredentialsFile struct {
	Path   string
	values map[string]any
}

// LoadCredentialsFile reads and decodes the JSON object at path.
func LoadCredentialsFile(path string) (*CredentialsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file %s: %w", path, err)
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode credentials file %s: %w", path, err)
	}
	if values == nil {
		return nil, fmt.Errorf("decode credentials file %s: not a JSON object", path)
	}
	return &CredentialsFile{Path: path, values: values}, nil
}

// Get returns the value stored under key. Empty strings and nulls count as
// absent.
func (f *CredentialsFile) Get(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f.values[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = fmt.Sprintf("%v", t)
	case bool:
		s = fmt.Sprintf("%t", t)
	default:
		return "", false
	}
	return s, s != ""
}

// RootToken returns the root_token field.
func (f *CredentialsFile) RootToken() (string, bool) {
	return f.Get(FileKeyRootToken)
}

// CallerRelativePath resolves rel against the directory of the Go source
// file that called it, so a suite can locate provisioning output relative
// to itself regardless of the working directory.
func CallerRelativePath(rel string) string {
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		abs, err := filepath.Abs(rel)
		if err != nil {
			return rel
		}
		return abs
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), rel))
}
