package descriptor

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"

	"github.com/oshokin/formula-resolver/internal/domain/formula"
)

const schemaURL = "formula-descriptor.schema.json"

// ErrInvalidDescriptor is returned when a document does not match the descriptor schema.
var ErrInvalidDescriptor = errors.New("invalid formula descriptor")

//go:embed schema.json
var schemaSource string

//nolint:gochecknoglobals // The schema is compiled once per process.
var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(schemaURL, schemaSource)
})

// document is the on-disk layout of a descriptor.
type document struct {
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description,omitempty"`
	Homepage     string     `yaml:"homepage,omitempty"`
	Version      string     `yaml:"version"`
	License      string     `yaml:"license,omitempty"`
	Requirements []string   `yaml:"requirements,omitempty"`
	Dependencies []string   `yaml:"dependencies,omitempty"`
	Artifacts    []artifact `yaml:"artifacts"`
}

type artifact struct {
	OS      string    `yaml:"os,omitempty"`
	When    string    `yaml:"when,omitempty"`
	URL     string    `yaml:"url"`
	SHA256  string    `yaml:"sha256"`
	Install []install `yaml:"install,omitempty"`
}

type install struct {
	Source string `yaml:"source"`
	Target string `yaml:"target,omitempty"`
}

// Decode validates data against the descriptor schema and converts it into a formula.
func Decode(data []byte) (*formula.Formula, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor: %w", err)
	}

	f := &formula.Formula{
		Name:         doc.Name,
		Description:  doc.Description,
		Homepage:     doc.Homepage,
		Version:      doc.Version,
		License:      doc.License,
		Requirements: doc.Requirements,
		Dependencies: doc.Dependencies,
		Artifacts:    make([]*formula.Artifact, 0, len(doc.Artifacts)),
	}

	for i, a := range doc.Artifacts {
		converted := &formula.Artifact{
			OS:     a.OS,
			URL:    a.URL,
			SHA256: a.SHA256,
		}

		if a.When != "" {
			when, err := formula.ParseExpr(a.When)
			if err != nil {
				return nil, fmt.Errorf("%w: artifacts[%d].when: %w", ErrInvalidDescriptor, i, err)
			}

			converted.When = when
		}

		for _, in := range a.Install {
			converted.Install = append(converted.Install, formula.BinaryInstall{
				Source: in.Source,
				Target: in.Target,
			})
		}

		f.Artifacts = append(f.Artifacts, converted)
	}

	return f, nil
}

// Encode renders f as a YAML descriptor.
func Encode(f *formula.Formula) ([]byte, error) {
	doc := document{
		Name:         f.Name,
		Description:  f.Description,
		Homepage:     f.Homepage,
		Version:      f.Version,
		License:      f.License,
		Requirements: f.Requirements,
		Dependencies: f.Dependencies,
		Artifacts:    make([]artifact, 0, len(f.Artifacts)),
	}

	for _, a := range f.Artifacts {
		converted := artifact{
			OS:     a.OS,
			When:   a.Condition(),
			URL:    a.URL,
			SHA256: a.SHA256,
		}

		for _, in := range a.Install {
			converted.Install = append(converted.Install, install{
				Source: in.Source,
				Target: in.Target,
			})
		}

		doc.Artifacts = append(doc.Artifacts, converted)
	}

	var buf bytes.Buffer

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}

	return buf.Bytes(), nil
}

func validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile descriptor schema: %w", err)
	}

	jsonData, err := k8syaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	// Numbers stay json.Number so the validator sees them unchanged.
	decoder := json.NewDecoder(bytes.NewReader(jsonData))
	decoder.UseNumber()

	var value any
	if err = decoder.Decode(&value); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	if err = schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	return nil
}
