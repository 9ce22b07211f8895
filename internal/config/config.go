// Package config loads the runtime manifest: permission grants, driver
// descriptors and the environment handed to the guest. The core packages
// treat the result as already validated; everything here is parsing and
// conversion.
package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/blocklessnetwork/runtime/internal/permissions"
)

// Manifest is the YAML runtime manifest.
type Manifest struct {
	AllowAll    bool        `yaml:"allow_all"`
	Permissions Permissions `yaml:"permissions"`
	Drivers     []DriverRef `yaml:"drivers"`
	Env         []string    `yaml:"env"`
	EnvFile     string      `yaml:"env_file"`
	Args        []string    `yaml:"args"`
}

// Permissions holds the per-class allow and deny lists plus URL permission
// records. A list entry of "*" grants the whole class.
type Permissions struct {
	Allow   ClassLists `yaml:"allow"`
	Deny    ClassLists `yaml:"deny"`
	Records []Record   `yaml:"records"`
}

// ClassLists is one descriptor list per resource class.
type ClassLists struct {
	Read  []string `yaml:"read"`
	Write []string `yaml:"write"`
	Net   []string `yaml:"net"`
	Env   []string `yaml:"env"`
	Run   []string `yaml:"run"`
	Sys   []string `yaml:"sys"`
	FFI   []string `yaml:"ffi"`
}

// Record is one URL permission record.
type Record struct {
	Schema string `yaml:"schema"`
	URL    string `yaml:"url"`
}

// DriverRef names an externally loaded driver.
type DriverRef struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes and validates a manifest.
func LoadFromReader(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if err == io.EOF {
			return &m, nil
		}
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the structural invariants the core relies on.
func (m *Manifest) Validate() error {
	for i, rec := range m.Permissions.Records {
		if rec.Schema == "" || rec.URL == "" {
			return fmt.Errorf("permission record %d needs schema and url", i)
		}
	}
	for i, d := range m.Drivers {
		if d.Name == "" || d.Path == "" {
			return fmt.Errorf("driver %d needs name and path", i)
		}
	}
	return nil
}

// PermissionOptions converts the manifest into container options.
func (m *Manifest) PermissionOptions(prompter permissions.Prompter) permissions.Options {
	records := make([]permissions.Permission, 0, len(m.Permissions.Records))
	for _, rec := range m.Permissions.Records {
		records = append(records, permissions.Permission{
			Schema:    rec.Schema,
			URLPrefix: rec.URL,
		})
	}
	return permissions.Options{
		AllowAll:       m.AllowAll,
		Allow:          m.Permissions.Allow.grants(),
		Deny:           m.Permissions.Deny.grants(),
		NetPermissions: records,
		Prompter:       prompter,
	}
}

func (l ClassLists) grants() map[permissions.Class]permissions.Grant {
	out := make(map[permissions.Class]permissions.Grant)
	add := func(class permissions.Class, entries []string) {
		if len(entries) == 0 {
			return
		}
		g := permissions.Grant{}
		for _, e := range entries {
			if e == "*" {
				g.All = true
				continue
			}
			g.List = append(g.List, e)
		}
		out[class] = g
	}
	add(permissions.ClassRead, l.Read)
	add(permissions.ClassWrite, l.Write)
	add(permissions.ClassNet, l.Net)
	add(permissions.ClassEnv, l.Env)
	add(permissions.ClassRun, l.Run)
	add(permissions.ClassSys, l.Sys)
	add(permissions.ClassFFI, l.FFI)
	return out
}

// GuestEnv assembles the environment handed to the guest: the env file
// first (keys sorted for determinism), then the manifest entries, which win
// on collision. A bare NAME entry forwards the host's value.
func (m *Manifest) GuestEnv() ([]string, error) {
	merged := make(map[string]string)
	var order []string

	if m.EnvFile != "" {
		fileVars, err := godotenv.Read(m.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", m.EnvFile, err)
		}
		keys := make([]string, 0, len(fileVars))
		for k := range fileVars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			merged[k] = fileVars[k]
			order = append(order, k)
		}
	}

	for _, entry := range m.Env {
		key, value, explicit := strings.Cut(entry, "=")
		if key == "" {
			return nil, fmt.Errorf("empty env entry %q", entry)
		}
		if !explicit {
			value = os.Getenv(key)
		}
		if _, seen := merged[key]; !seen {
			order = append(order, key)
		}
		merged[key] = value
	}

	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+merged[k])
	}
	return out, nil
}
