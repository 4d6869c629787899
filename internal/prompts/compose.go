package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Compose builds a prompt from the stage instructions, the stage spec, and an
// optional JSON-serialized context block. A nil data value or an empty label
// omits the context block.
func Compose(ctx context.Context, sys System, stage Stage, label string, data any) (string, error) {
	instructions, err := sys.Instructions(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := sys.Spec(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(spec)

	if data != nil && label != "" {
		body, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serialize %s: %w", label, err)
		}

		sb.WriteString("\n\n")
		sb.WriteString(label)
		sb.WriteString(":\n\n")
		sb.WriteString(string(body))
	}

	return sb.String(), nil
}
