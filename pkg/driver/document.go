package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lctr/record-envr/pkg/envr"
	"gopkg.in/yaml.v3"
)

// Document represents the parsed contents of a scope file.
type Document struct {
	Path    string
	Name    string
	Extends *ExtendsSpec
	// Levels are ordered outermost first.
	Levels  []Level
}

// Level is one scope level, with bindings in document order.
type Level struct {
	Bindings []envr.Entry[string, any]
}

// ExtendsSpec names the parent document, either on disk or inside a git
// repository.
type ExtendsSpec struct {
	Path   string
	Git    string
	Rev    string
	Tag    string
	Branch string
	File   string
}

// IsGit reports whether the parent lives in a git repository.
func (s *ExtendsSpec) IsGit() bool {
	return s != nil && s.Git != ""
}

// ValidationError aggregates document validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "scope: invalid document"
	}
	var b strings.Builder
	b.WriteString("scope validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

var ErrEmptyDocument = errors.New("scope: document is empty")

// LoadDocument parses a scope file from disk, returning a validated document.
func LoadDocument(path string) (*Document, error) {
	if path == "" {
		return nil, fmt.Errorf("scope: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("scope: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("scope: open %s: %w", absPath, err)
	}
	defer file.Close()

	doc, err := DecodeDocument(file, absPath)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DecodeDocument reads a scope document from r. path is recorded on the
// result and used in error messages.
func DecodeDocument(r io.Reader, path string) (*Document, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var raw documentFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
		}
		return nil, fmt.Errorf("scope: parse %s: %w", path, err)
	}

	doc := raw.toDocument(path)
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) validate() error {
	var errs ValidationError
	if d.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	if len(d.Levels) == 0 {
		errs.Issues = append(errs.Issues, "levels must contain at least one mapping")
	}
	if ext := d.Extends; ext != nil {
		errs.Issues = append(errs.Issues, ext.validate()...)
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

func (s *ExtendsSpec) validate() []string {
	var errs []string
	switch {
	case s.Path == "" && s.Git == "":
		errs = append(errs, "extends must specify path or git")
	case s.Path != "" && s.Git != "":
		errs = append(errs, "extends cannot specify both path and git")
	}
	if s.Git != "" {
		refs := 0
		for _, ref := range []string{s.Rev, s.Tag, s.Branch} {
			if ref != "" {
				refs++
			}
		}
		if refs != 1 {
			errs = append(errs, "git extends require exactly one of rev, tag, or branch")
		}
		if s.File == "" {
			errs = append(errs, "git extends require file")
		}
	} else if s.File != "" || s.Rev != "" || s.Tag != "" || s.Branch != "" {
		errs = append(errs, "file, rev, tag, and branch apply only to git extends")
	}
	return errs
}

// Environment builds a chain from the document's own levels, ignoring
// extends. The outermost level becomes the root.
func (d *Document) Environment() *envr.Env[string, any] {
	return d.attach(nil)
}

// attach stacks the document's levels on top of parent.
func (d *Document) attach(parent *envr.Env[string, any]) *envr.Env[string, any] {
	env := parent
	for _, level := range d.Levels {
		env = envr.NewFrom(env)
		for _, binding := range level.Bindings {
			env.Set(binding.Key, binding.Value)
		}
	}
	if env == nil {
		return envr.New[string, any]()
	}
	return env
}

type documentFile struct {
	Name    string       `yaml:"name"`
	Extends *extendsYAML `yaml:"extends"`
	Levels  levelList    `yaml:"levels"`
}

type extendsYAML struct {
	Path   string `yaml:"path"`
	Git    string `yaml:"git"`
	Rev    string `yaml:"rev"`
	Tag    string `yaml:"tag"`
	Branch string `yaml:"branch"`
	File   string `yaml:"file"`
}

type levelList struct {
	items []Level
}

func (ll *levelList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		ll.items = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			ll.items = nil
			return nil
		}
	case yaml.AliasNode:
		return ll.UnmarshalYAML(value.Alias)
	case yaml.SequenceNode:
		items := make([]Level, 0, len(value.Content))
		for i, node := range value.Content {
			level, err := decodeLevel(node)
			if err != nil {
				return fmt.Errorf("levels[%d]: %w", i, err)
			}
			items = append(items, level)
		}
		ll.items = items
		return nil
	}
	return fmt.Errorf("levels must be a sequence of mappings, found %s", value.ShortTag())
}

func decodeLevel(node *yaml.Node) (Level, error) {
	if node.Kind == yaml.AliasNode {
		return decodeLevel(node.Alias)
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return Level{}, nil
	}
	if node.Kind != yaml.MappingNode {
		return Level{}, fmt.Errorf("expected mapping, found %s", node.ShortTag())
	}
	bindings := make([]envr.Entry[string, any], 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]

		var key string
		if err := keyNode.Decode(&key); err != nil {
			return Level{}, err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return Level{}, fmt.Errorf("binding names must be non-empty")
		}
		var value any
		if err := valNode.Decode(&value); err != nil {
			return Level{}, fmt.Errorf("binding %q: %w", key, err)
		}
		bindings = append(bindings, envr.Entry[string, any]{Key: key, Value: value})
	}
	return Level{Bindings: bindings}, nil
}

func (df documentFile) toDocument(path string) *Document {
	doc := &Document{
		Path:   path,
		Name:   strings.TrimSpace(df.Name),
		Levels: df.Levels.items,
	}
	if ext := df.Extends; ext != nil {
		doc.Extends = &ExtendsSpec{
			Path:   strings.TrimSpace(ext.Path),
			Git:    strings.TrimSpace(ext.Git),
			Rev:    strings.TrimSpace(ext.Rev),
			Tag:    strings.TrimSpace(ext.Tag),
			Branch: strings.TrimSpace(ext.Branch),
			File:   strings.TrimSpace(ext.File),
		}
	}
	return doc
}
