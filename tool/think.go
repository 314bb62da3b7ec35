package tool

import "context"

// ThinkTool lets the model externalize a reasoning step without taking an
// action. It has no side effects and always succeeds.
type ThinkTool struct{}

// NewThinkTool creates the think tool.
func NewThinkTool() *ThinkTool { return &ThinkTool{} }

func (ThinkTool) Name() string { return "think" }

func (ThinkTool) Description() string {
	return "Use this tool to think about something. It will not obtain new information or change " +
		"anything, but just records the thought. Use it when complex reasoning is needed " +
		"before deciding on the next action."
}

func (ThinkTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "thought", Type: "string", Description: "Your reasoning"},
	}
}

func (ThinkTool) Execute(_ context.Context, args map[string]any) Result {
	thought, _ := StringArg(args, "thought")
	return Success(thought, map[string]any{"length": len(thought)})
}
