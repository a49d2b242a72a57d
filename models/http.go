package models

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply of POST /chat.
type ChatResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response,omitempty"`
	Blocked   bool   `json:"blocked"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ConversationResponse is the reply of GET /conversation.
type ConversationResponse struct {
	Success bool        `json:"success"`
	Session SessionInfo `json:"session"`
	History []Exchange  `json:"history"`
	Error   string      `json:"error,omitempty"`
}

// ClearRequest is the body of DELETE /conversation.
type ClearRequest struct {
	SessionID string `json:"session_id"`
}

// StockChartResponse is the reply of the market-chart proxy endpoint.
type StockChartResponse struct {
	Success       bool      `json:"success"`
	Dates         []string  `json:"dates,omitempty"`
	Prices        []float64 `json:"prices,omitempty"`
	CurrentPrice  float64   `json:"currentPrice,omitempty"`
	PreviousClose float64   `json:"previousClose,omitempty"`
	Change        float64   `json:"change,omitempty"`
	ChangePercent float64   `json:"changePercent,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// HealthResponse is the reply of GET /healthz.
type HealthResponse struct {
	Status          string `json:"status"`
	ActiveSessions  int    `json:"active_sessions"`
	TotalExchanges  int    `json:"total_exchanges"`
	SearchReachable bool   `json:"search_reachable"`
}
