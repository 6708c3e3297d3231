package weather

import (
	"fmt"

	"github.com/shaharia-lab/weather-mcp/mcp"
)

// NewBaseServer wires the weather tools and prompts into a protocol handler.
// Extra options are applied after the registries.
func NewBaseServer(g *Generator, opts ...mcp.ServerConfigOption) (*mcp.BaseServer, error) {
	tools, err := NewToolManager(g)
	if err != nil {
		return nil, fmt.Errorf("build tools: %w", err)
	}
	prompts, err := NewPromptManager()
	if err != nil {
		return nil, fmt.Errorf("build prompts: %w", err)
	}

	all := append([]mcp.ServerConfigOption{
		mcp.UseTools(tools),
		mcp.UsePrompts(prompts),
	}, opts...)
	return mcp.NewBaseServer(all...)
}
