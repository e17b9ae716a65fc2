package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// jsonConfig mirrors the on-disk layout: a top-level "servers" object keyed
// by server key.
type jsonConfig struct {
	Servers map[string]jsonServer `json:"servers"`
}

type jsonServer struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env"`
	Enabled     *bool             `json:"enabled"`
	Description string            `json:"description"`
	ToolPrefix  string            `json:"toolPrefix"`
}

// LoadJSON reads descriptor definitions from a JSON config file.
// ${VAR} and $VAR references in args and env values are expanded from the
// process environment at load time; every env key becomes a required
// variable, so a server whose credentials are missing reports itself
// unavailable instead of failing at launch. Servers are enabled unless the
// file says otherwise.
func LoadJSON(path string) (map[string]*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}

	var cfg jsonConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse server config %s: %w", path, err)
	}

	out := make(map[string]*Descriptor, len(cfg.Servers))
	for key, js := range cfg.Servers {
		env := make(map[string]string, len(js.Env))
		required := make([]string, 0, len(js.Env))
		for name, value := range js.Env {
			env[name] = os.ExpandEnv(value)
			required = append(required, name)
		}
		sort.Strings(required)

		args := make([]string, len(js.Args))
		for i, a := range js.Args {
			args[i] = os.ExpandEnv(a)
		}

		description := js.Description
		if description == "" {
			description = "External tool server: " + key
		}

		out[key] = &Descriptor{
			Name:        displayName(key),
			Description: description,
			Command:     js.Command,
			Args:        args,
			Env:         env,
			Enabled:     js.Enabled == nil || *js.Enabled,
			RequiredEnv: required,
			ToolPrefix:  js.ToolPrefix,
		}
	}
	return out, nil
}

// Merge overlays override descriptors onto base, key by key. Override wins.
func Merge(base, override map[string]*Descriptor) map[string]*Descriptor {
	out := make(map[string]*Descriptor, len(base)+len(override))
	for key, d := range base {
		out[key] = d
	}
	for key, d := range override {
		out[key] = d
	}
	return out
}

// displayName derives a human-readable name from a server key,
// e.g. "github-issues" becomes "Github Issues".
func displayName(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
