// Package mcp implements the server and client sides of the Model Context
// Protocol over JSON-RPC 2.0, limited to tools and prompts.
//
// A server is assembled from a ToolManager and a PromptManager, wrapped by a
// BaseServer and bound to a transport:
//
//	tools, _ := mcp.NewToolManager(mcp.Tool{
//		Name:        "get_current_weather",
//		Description: "Get current weather for a location",
//		Parameters: []mcp.ToolParameter{
//			{Name: "location", Type: mcp.ParamString, Required: true},
//		},
//		Handler: func(ctx context.Context, req mcp.ToolRequest) (any, error) {
//			return map[string]string{"location": req.Arguments.String("location")}, nil
//		},
//	})
//	prompts, _ := mcp.NewPromptManager()
//
//	base, err := mcp.NewBaseServer(
//		mcp.UseLogger(logger),
//		mcp.UseTools(tools),
//		mcp.UsePrompts(prompts),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	server := mcp.NewStdIOServer(base, os.Stdin, os.Stdout)
//	if err := server.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// NewStreamableHTTPServer serves the same BaseServer on a single HTTP endpoint.
// StdIOClient and HTTPClient are the matching consumers.
package mcp
