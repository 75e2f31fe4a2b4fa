package llm

// ErrorResponse is the JSON error body returned by the persistence API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateConversationRequest is the body of POST /users/:user/conversations.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// CreateConversationResponse carries the id of a created conversation.
type CreateConversationResponse struct {
	ID string `json:"id"`
}

// AppendMessageRequest is the body of POST /conversations/:id/messages.
type AppendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RenameConversationRequest is the body of PATCH /conversations/:id.
type RenameConversationRequest struct {
	Title string `json:"title"`
}
