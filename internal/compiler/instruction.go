package compiler

import (
	"fmt"
	"strings"
)

// Placeholder markers wrap generated instructions so downstream consumers
// can recognise them inside the prompt.
const (
	instructionOpen  = "([{"
	instructionClose = "}])"
)

// builtinTypes are the instruction types every template can use without an
// extension schema. Extensions and custom types may override them.
var builtinTypes = map[string]instructionType{
	"list": {
		Template: "Insert a list here. {description}",
	},
	"paragraph": {
		Template: "Write a paragraph here. {description}",
	},
	"title": {
		Template: "Write a title here. {description}",
	},
	"code": {
		Template: "Insert a code block here. {description}",
	},
	"table": {
		Template: "Insert a table here. {description}",
	},
	"number": {
		Template: "Insert a number here. {description}",
	},
}

// renderPlaceholder expands a placeholder element using its instruction
// type's template. The element's config description is itself subject to
// ${...} variable substitution.
func renderPlaceholder(el contentElement, types map[string]instructionType, vars map[string]any) (string, error) {
	if el.InstructionType == "" {
		return "", fmt.Errorf("compiler: placeholder element is missing instructionType")
	}
	t, ok := types[el.InstructionType]
	if !ok {
		return "", fmt.Errorf("compiler: unknown instruction type %q", el.InstructionType)
	}

	description := t.Description
	if v, ok := el.Config["description"].(string); ok && v != "" {
		description = v
	}
	description, err := renderText(description, vars)
	if err != nil {
		return "", err
	}

	instruction := t.Template
	if instruction == "" {
		instruction = description
	} else {
		instruction = strings.ReplaceAll(instruction, "{description}", description)
	}

	if strings.HasPrefix(instruction, instructionOpen) {
		return instruction, nil
	}
	return instructionOpen + instruction + instructionClose, nil
}
