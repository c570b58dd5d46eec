// Package builtintools implements the approval-gated built-in tools:
// create_agent, load_skill, and human_intervention.
//
// Grounded on the teacher's internal/tools/exec/tools.go (Tool shape,
// toolError helper) and internal/skills/* (skill lookup), with schemas
// generated via github.com/invopop/jsonschema.
package builtintools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/yysun/agent-world-sub001/internal/hitl"
	"github.com/yysun/agent-world-sub001/internal/ids"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// CreateAgentArgs is the create_agent tool's parameter shape.
type CreateAgentArgs struct {
	Name      string `json:"name" jsonschema:"required"`
	AutoReply bool   `json:"autoReply,omitempty"`
	Role      string `json:"role,omitempty"`
	NextAgent string `json:"nextAgent,omitempty"`
}

// SlotClaimer prevents two concurrent create_agent calls from
// registering the same agent id. No type in this module implements it.
type SlotClaimer interface {
	ClaimCreationSlot(worldID, kebabName string) (release func(), ok bool)
}

// AgentCreator performs the actual agent construction once approved.
// No type in this module implements it; orchmanager.Manager's
// CreateAgent takes CreateAgentParams and CreateAgentOptions instead.
type AgentCreator interface {
	CreateAgent(worldID string, agent orchmodel.Agent, allowWhileProcessing bool) error
}

// SystemEventPublisher forwards agent-created system events.
type SystemEventPublisher interface {
	PublishAgentCreated(worldID, agentID string)
}

// CreateAgentTool implements the create_agent built-in tool.
type CreateAgentTool struct {
	HITL      *hitl.Runtime
	Slots     SlotClaimer
	Creator   AgentCreator
	Publisher SystemEventPublisher
}

func (t *CreateAgentTool) Name() string        { return "create_agent" }
func (t *CreateAgentTool) Description() string { return "Create a new agent in the current world, subject to human approval." }

func (t *CreateAgentTool) Schema() []byte {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&CreateAgentArgs{})
	b, _ := json.Marshal(schema)
	return b
}

// ApprovalRequired marks this tool as requiring the HITL approval
// wrapper — but create_agent's own flow (claim slot, then
// issue its own yes/no HITL request) supersedes the generic wrapper, so
// this always returns false: the tool manages its own approval gate
// internally to keep the slot-claim and HITL request atomic.
func (t *CreateAgentTool) ApprovalRequired() bool { return false }

func (t *CreateAgentTool) Execute(ctx context.Context, tc orchmodel.ToolContext, argsJSON []byte) (*orchmodel.ToolResult, error) {
	var args CreateAgentArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: malformed create_agent arguments: %v", err)}, nil
	}
	if strings.TrimSpace(args.Name) == "" {
		return &orchmodel.ToolResult{IsError: true, Content: "Error: name is required"}, nil
	}
	if args.NextAgent == "" {
		args.NextAgent = "human"
	}

	kebab := ids.ToKebabCase(args.Name)
	worldID := ""
	if tc.World != nil {
		worldID = tc.World.ID
	}

	release, ok := t.Slots.ClaimCreationSlot(worldID, kebab)
	if !ok {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: agent %q is already being created", kebab)}, nil
	}
	defer func() {
		if release != nil {
			release()
		}
	}()

	resolution, err := t.HITL.RequestOption(hitl.Request{
		WorldID: worldID,
		Title:   "Create agent?",
		Message: fmt.Sprintf("Approve creation of agent %q?", args.Name),
		Options: []hitl.Option{
			{ID: "yes", Label: "Yes"},
			{ID: "no", Label: "No"},
		},
		ChatID: tc.ChatID,
	})
	if err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: %v", err)}, nil
	}
	if resolution.OptionID != "yes" {
		return &orchmodel.ToolResult{Content: "Agent creation denied or timed out."}, nil
	}

	provider := orchmodel.ProviderOpenAI
	model := "gpt-4"
	if tc.World != nil && tc.World.ChatLLMProvider != "" {
		provider = tc.World.ChatLLMProvider
		model = tc.World.ChatLLMModel
	}

	systemPrompt := fmt.Sprintf("You are agent %s.", args.Name)
	if args.Role != "" {
		systemPrompt += " " + args.Role + "."
	}
	systemPrompt += fmt.Sprintf(" Always respond in exactly this structure:\n@%s\n{Your response}", args.NextAgent)

	newAgent := orchmodel.Agent{
		ID:           kebab,
		Name:         args.Name,
		Provider:     provider,
		Model:        model,
		SystemPrompt: systemPrompt,
		AutoReply:    args.AutoReply,
	}

	// Release the slot before CreateAgent so the creator can re-check
	// uniqueness without deadlocking on our own claim.
	if release != nil {
		release()
		release = nil
	}

	if err := t.Creator.CreateAgent(worldID, newAgent, true); err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: %v", err)}, nil
	}
	if t.Publisher != nil {
		t.Publisher.PublishAgentCreated(worldID, kebab)
	}
	return &orchmodel.ToolResult{Content: fmt.Sprintf("Agent %q created.", kebab)}, nil
}
