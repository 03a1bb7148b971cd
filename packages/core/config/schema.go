package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON schema config files are validated against.
func Schema() []byte {
	return schemaJSON
}

// ValidationError lists every schema violation found in a config file.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d problem(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Validate checks raw YAML or JSON config data against the schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "parsing config")
	}
	if doc == nil {
		// empty file
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return errors.Wrap(err, "schema validation")
	}

	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, e := range result.Errors() {
		verr.Problems = append(verr.Problems, e.String())
	}
	return verr
}
