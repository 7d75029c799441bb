package tools

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaBaseURL = "https://plaid-mcp-server.local/schemas/"

func compileSchemas(tools []Tool) (map[string]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)

	for _, tool := range tools {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(tool.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", tool.Name, err)
		}
		if err := c.AddResource(schemaBaseURL+tool.Name+".json", doc); err != nil {
			return nil, fmt.Errorf("schema for %s: %w", tool.Name, err)
		}
	}

	schemas := make(map[string]*jsonschema.Schema, len(tools))
	for _, tool := range tools {
		sch, err := c.Compile(schemaBaseURL + tool.Name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", tool.Name, err)
		}
		schemas[tool.Name] = sch
	}
	return schemas, nil
}

func validateArgs(sch *jsonschema.Schema, args []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
