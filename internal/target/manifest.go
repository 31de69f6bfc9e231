package target

import (
	"fmt"
	"os"

	"callfuzz/internal/corpus"
	"gopkg.in/yaml.v3"
)

// Manifest is the YAML form of a target set.
//
//	functions:
//	  - module: math
//	    name: Sqrt
//	    params:
//	      - kind: double
//	  - module: strings
//	    name: Repeat
//	    unknown: true
//	classes:
//	  - module: bytes
//	    name: Buffer
//	    constructor: NewBufferString
//	    methods:
//	      - name: NewBufferString
//	        params: [{kind: string}]
//	      - name: Truncate
//	        unknown: true
type Manifest struct {
	Functions []FunctionEntry `yaml:"functions"`
	Classes   []ClassEntry    `yaml:"classes"`
}

// FunctionEntry describes one function.
type FunctionEntry struct {
	File    string       `yaml:"file,omitempty"`
	Module  string       `yaml:"module"`
	Name    string       `yaml:"name"`
	Unknown bool         `yaml:"unknown,omitempty"`
	Params  []ParamEntry `yaml:"params,omitempty"`
}

// ClassEntry describes one class and its methods.
type ClassEntry struct {
	File        string        `yaml:"file,omitempty"`
	Module      string        `yaml:"module"`
	Name        string        `yaml:"name"`
	Constructor string        `yaml:"constructor,omitempty"`
	Methods     []MethodEntry `yaml:"methods"`
}

// MethodEntry describes one method.
type MethodEntry struct {
	Name    string       `yaml:"name"`
	Unknown bool         `yaml:"unknown,omitempty"`
	Params  []ParamEntry `yaml:"params,omitempty"`
}

// ParamEntry describes one parameter slot.
type ParamEntry struct {
	Kind    string        `yaml:"kind"`
	Default *corpus.Value `yaml:"default,omitempty"`
}

// LoadManifest reads a manifest file and builds the target set.
func LoadManifest(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest builds a target set from YAML.
func ParseManifest(data []byte) (*Set, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m.Build()
}

// Build converts the manifest into targets.
func (m *Manifest) Build() (*Set, error) {
	set := &Set{}

	for _, fe := range m.Functions {
		if fe.Module == "" || fe.Name == "" {
			return nil, fmt.Errorf("function entry needs module and name: %+v", fe)
		}
		fn := NewFunction(fe.File, fe.Module, fe.Name)
		applyParams(&fn.signature, fe.Unknown, fe.Params)
		set.Functions = append(set.Functions, fn)
	}

	for _, ce := range m.Classes {
		if ce.Module == "" || ce.Name == "" {
			return nil, fmt.Errorf("class entry needs module and name: %+v", ce)
		}
		cls := NewClass(ce.File, ce.Module, ce.Name)
		cls.SetConstructor(ce.Constructor)
		for _, me := range ce.Methods {
			method, err := cls.AddMethod(me.Name)
			if err != nil {
				return nil, err
			}
			applyParams(&method.signature, me.Unknown, me.Params)
		}
		set.Classes = append(set.Classes, cls)
	}

	return set, nil
}

// applyParams installs declared slots. A shape is known when the entry is
// not flagged unknown; an entry with no params and no flag takes none.
func applyParams(sig *signature, unknown bool, params []ParamEntry) {
	if unknown {
		sig.unknown = true
		return
	}
	sig.unknown = false
	for _, p := range params {
		sig.AddParam(corpus.ParseKind(p.Kind), p.Default)
	}
}
