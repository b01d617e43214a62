// Package command addresses gateway operations by name. Each command
// decodes JSON parameters into a gateway request and describes those
// parameters with a reflected JSON schema, so every transport (HTTP, MCP,
// CLI) shares one contract.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/starford/fsgate/internal/apperr"
	"github.com/starford/fsgate/internal/gateway"
)

// Executor runs a decoded request. *dispatch.Dispatcher satisfies it.
type Executor interface {
	Do(ctx context.Context, caller string, req gateway.PathRequest) gateway.Result
}

// PathParams are the parameters of create_dir and read_file.
type PathParams struct {
	Path string `json:"path" jsonschema:"required,description=Absolute or relative path of the target."`
}

// WriteParams are the parameters of write_file.
type WriteParams struct {
	Path     string  `json:"path" jsonschema:"required,description=Absolute or relative path of the file to replace or create."`
	Contents *string `json:"contents" jsonschema:"required,description=Full text to write. An empty string truncates the file."`
}

// Descriptor documents one command.
type Descriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Params      *jsonschema.Schema `json:"params"`
}

type command struct {
	desc   Descriptor
	decode func(json.RawMessage) (gateway.PathRequest, error)
}

// Registry holds the named commands.
type Registry struct {
	exec     Executor
	commands map[string]command
}

// NewRegistry creates a registry whose commands run on exec.
func NewRegistry(exec Executor) *Registry {
	r := &Registry{exec: exec, commands: make(map[string]command)}

	r.add(gateway.OpCreateDir,
		"Create a directory and all missing parent directories. Succeeds if it already exists.",
		GenerateSchema[PathParams](),
		func(raw json.RawMessage) (gateway.PathRequest, error) {
			p, err := decodeParams[PathParams](raw)
			return gateway.CreateDir(p.Path), err
		})

	r.add(gateway.OpReadFile,
		"Read the full contents of a file as text.",
		GenerateSchema[PathParams](),
		func(raw json.RawMessage) (gateway.PathRequest, error) {
			p, err := decodeParams[PathParams](raw)
			return gateway.ReadFile(p.Path), err
		})

	r.add(gateway.OpWriteFile,
		"Replace or create a file with the given text. Parent directories must exist.",
		GenerateSchema[WriteParams](),
		func(raw json.RawMessage) (gateway.PathRequest, error) {
			p, err := decodeParams[WriteParams](raw)
			return gateway.PathRequest{Op: gateway.OpWriteFile, Path: p.Path, Contents: p.Contents}, err
		})

	return r
}

func (r *Registry) add(op gateway.Op, description string, schema *jsonschema.Schema, decode func(json.RawMessage) (gateway.PathRequest, error)) {
	r.commands[string(op)] = command{
		desc:   Descriptor{Name: string(op), Description: description, Params: schema},
		decode: decode,
	}
}

// Describe lists all commands sorted by name.
func (r *Registry) Describe() []Descriptor {
	out := make([]Descriptor, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the descriptor of name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	c, ok := r.commands[name]
	return c.desc, ok
}

// Decode turns raw JSON parameters into a validated request.
func (r *Registry) Decode(name string, raw json.RawMessage) (gateway.PathRequest, error) {
	c, ok := r.commands[name]
	if !ok {
		return gateway.PathRequest{}, apperr.Newf(apperr.InvalidArgument, name, "", "unknown command %q", name)
	}
	req, err := c.decode(raw)
	if err != nil {
		return gateway.PathRequest{}, apperr.New(apperr.InvalidArgument, name, "", err)
	}
	if err := req.Validate(); err != nil {
		return gateway.PathRequest{}, err
	}
	return req, nil
}

// Invoke decodes raw and runs the named command on behalf of caller.
// Decoding failures never reach the executor.
func (r *Registry) Invoke(ctx context.Context, caller, name string, raw json.RawMessage) gateway.Result {
	req, err := r.Decode(name, raw)
	if err != nil {
		return gateway.Failed(gateway.Op(name), err)
	}
	return r.exec.Do(ctx, caller, req)
}

// GenerateSchema reflects the JSON schema of T. Schemas are inlined and
// closed: unknown parameters are rejected by Decode as well.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	return reflector.Reflect(&v)
}

func decodeParams[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("params: %w", err)
	}
	return v, nil
}
