// Package prompts ships the default system prompts as an embedded yaml
// bundle. Deployments can override individual prompts with a bundle file of
// their own.
package prompts

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultBundle []byte

// Bundle is a named set of prompt templates. Templates use {variable}
// placeholders filled in at invocation time.
type Bundle struct {
	prompts map[string]string
}

// Load parses a yaml prompt bundle.
func Load(data []byte) (*Bundle, error) {
	prompts := map[string]string{}
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("parse prompt bundle: %w", err)
	}
	return &Bundle{prompts: prompts}, nil
}

// LoadFile reads a prompt bundle from disk and overlays it on the embedded
// defaults, so a partial file only overrides the prompts it names.
func LoadFile(path string) (*Bundle, error) {
	bundle, err := Default()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt bundle: %w", err)
	}
	overlay, err := Load(data)
	if err != nil {
		return nil, err
	}
	for name, prompt := range overlay.prompts {
		bundle.prompts[name] = prompt
	}
	return bundle, nil
}

// Default returns the embedded prompt bundle.
func Default() (*Bundle, error) {
	return Load(defaultBundle)
}

// MustDefault panics when the embedded bundle does not parse, which only
// happens on a broken build.
func MustDefault() *Bundle {
	bundle, err := Default()
	if err != nil {
		panic(err)
	}
	return bundle
}

// Get returns the named prompt template, "" when absent.
func (b *Bundle) Get(name string) string {
	return b.prompts[name]
}

// Names returns the prompt names in the bundle.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.prompts))
	for name := range b.prompts {
		names = append(names, name)
	}
	return names
}
