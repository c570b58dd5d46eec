package builtintools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// SkillSource looks up the on-disk source path and content for a skill
// id, once the skill registry's initial sync has completed. Implemented
// by the (out-of-scope) skill-registry file discovery collaborator.
type SkillSource interface {
	WaitForInitialSync(ctx context.Context) error
	ReadSkill(skillID string) (content string, err error)
}

// LoadSkillArgs is the load_skill tool's parameter shape.
type LoadSkillArgs struct {
	SkillID string `json:"skill_id" jsonschema:"required"`
}

// LoadSkillTool implements the load_skill built-in tool.
type LoadSkillTool struct {
	Skills SkillSource
}

func (t *LoadSkillTool) Name() string        { return "load_skill" }
func (t *LoadSkillTool) Description() string { return "Load the full content of a registered skill by id." }

func (t *LoadSkillTool) Schema() []byte {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&LoadSkillArgs{})
	b, _ := json.Marshal(schema)
	return b
}

func (t *LoadSkillTool) Execute(ctx context.Context, tc orchmodel.ToolContext, argsJSON []byte) (*orchmodel.ToolResult, error) {
	var args LoadSkillArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("<error>malformed load_skill arguments: %v</error>", err)}, nil
	}
	if args.SkillID == "" {
		return &orchmodel.ToolResult{IsError: true, Content: "<error>skill_id is required</error>"}, nil
	}

	if err := t.Skills.WaitForInitialSync(ctx); err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("<error>skill registry unavailable: %v</error>", err)}, nil
	}

	content, err := t.Skills.ReadSkill(args.SkillID)
	if err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("<error>skill %q not found: %v</error>", args.SkillID, err)}, nil
	}

	return &orchmodel.ToolResult{Content: fmt.Sprintf("<skill_context>\n%s\n</skill_context>", content)}, nil
}
