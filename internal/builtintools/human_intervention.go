package builtintools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// HumanInterventionArgs is the human_intervention.request tool's
// parameter shape.
type HumanInterventionArgs struct {
	Prompt  string   `json:"prompt" jsonschema:"required"`
	Options []string `json:"options" jsonschema:"required"`
}

// HumanInterventionTool transforms a request into a synthetic
// client.humanIntervention redirect: it never blocks inline — it hands
// the pause back to the dispatch loop, which persists the open request
// and lets the HITL runtime resolve it out of band.
type HumanInterventionTool struct{}

func (t *HumanInterventionTool) Name() string { return "human_intervention.request" }
func (t *HumanInterventionTool) Description() string {
	return "Ask a human to choose among options before continuing."
}

func (t *HumanInterventionTool) Schema() []byte {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&HumanInterventionArgs{})
	b, _ := json.Marshal(schema)
	return b
}

func (t *HumanInterventionTool) Execute(ctx context.Context, tc orchmodel.ToolContext, argsJSON []byte) (*orchmodel.ToolResult, error) {
	var args HumanInterventionArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: malformed human_intervention arguments: %v", err)}, nil
	}
	if args.Prompt == "" {
		return &orchmodel.ToolResult{IsError: true, Content: "Error: prompt is required"}, nil
	}
	if len(args.Options) == 0 {
		return &orchmodel.ToolResult{IsError: true, Content: "Error: at least one option is required"}, nil
	}

	return &orchmodel.ToolResult{
		StopProcessing:  true,
		ApprovalMessage: fmt.Sprintf("client.humanIntervention: %s", args.Prompt),
	}, nil
}
