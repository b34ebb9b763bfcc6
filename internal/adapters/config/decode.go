package config

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// decode picks the format from the file extension.
func decode(path string, data []byte, revision string) (*File, error) {
	if filepath.Ext(path) == ".hcl" {
		return decodeHCL(path, data, revision)
	}
	return decodeYAML(data, revision)
}

// decodeYAML expands ${revision} and rejects unknown keys.
func decodeYAML(data []byte, revision string) (*File, error) {
	expanded := strings.ReplaceAll(string(data), "${"+RevisionVariable+"}", revision)

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		return nil, zerr.Wrap(wrapMalformed(err), "failed to parse declaration file")
	}
	return &file, nil
}

// decodeHCL evaluates the file with revision bound as a variable.
func decodeHCL(path string, data []byte, revision string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(bytes.Clone(data), path)
	if diags.HasErrors() {
		return nil, zerr.Wrap(wrapMalformed(diags), "failed to parse declaration file")
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			RevisionVariable: cty.StringVal(revision),
		},
	}

	var file File
	if diags := gohcl.DecodeBody(f.Body, evalCtx, &file); diags.HasErrors() {
		return nil, zerr.Wrap(wrapMalformed(diags), "failed to decode declaration file")
	}
	return &file, nil
}

func wrapMalformed(err error) error {
	return &domain.MalformedDeclarationError{Reason: err.Error()}
}
