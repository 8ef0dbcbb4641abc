package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listSessionsTool = mcp.NewTool("list_sessions",
	mcp.WithDescription("List the user's OS Buddy chats, newest first."),
)

var getSessionTool = mcp.NewTool("get_session",
	mcp.WithDescription("Get the full transcript of one OS Buddy chat."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("ID from list_sessions"),
	),
)

var newSessionTool = mcp.NewTool("new_session",
	mcp.WithDescription("Start an empty OS Buddy chat and return its ID."),
)

var deleteSessionTool = mcp.NewTool("delete_session",
	mcp.WithDescription("Delete an OS Buddy chat and its messages."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("ID from list_sessions"),
	),
)

var sendMessageTool = mcp.NewTool("send_message",
	mcp.WithDescription("Ask the OS tutor a question. Omit session_id to start a new chat."),
	mcp.WithString("message",
		mcp.Required(),
		mcp.Description("The question, in Markdown"),
	),
	mcp.WithString("session_id",
		mcp.Description("Chat to continue"),
	),
)

var searchNotesTool = mcp.NewTool("search_notes",
	mcp.WithDescription("Search the ingested operating-systems reference notes."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 3)"),
	),
)
