package handler

import "net/http"

// Routes groups the API handlers
type Routes struct {
	Chat        *ChatHandler
	ToolServers *ToolServerHandler
	Usage       *UsageHandler
	Metrics     http.Handler
}

// Register adds every route to mux (Go 1.22+ method patterns)
func (rt *Routes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", HealthCheck)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	// Chat
	mux.HandleFunc("POST /api/chat", rt.Chat.Chat)
	mux.HandleFunc("DELETE /api/chat/{projectId}", rt.Chat.Abort)
	mux.HandleFunc("GET /api/projects/{id}/messages", rt.Chat.ListMessages)
	mux.HandleFunc("GET /api/projects/{id}/highlights", rt.Chat.ListHighlights)

	// Tool servers
	mux.HandleFunc("GET /api/tool-servers", rt.ToolServers.List)
	mux.HandleFunc("POST /api/tool-servers", rt.ToolServers.Create)
	mux.HandleFunc("POST /api/tool-servers/test", rt.ToolServers.Test)
	mux.HandleFunc("PATCH /api/tool-servers/{id}", rt.ToolServers.Update)
	mux.HandleFunc("DELETE /api/tool-servers/{id}", rt.ToolServers.Delete)

	// Usage
	mux.HandleFunc("GET /api/usage", rt.Usage.GetUsage)
}
