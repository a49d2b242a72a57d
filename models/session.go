package models

import "time"

// Exchange is one question/answer pair in a conversation session.
// Exchanges are immutable once appended to a session.
type Exchange struct {
	Timestamp         time.Time       `json:"timestamp"`
	UserQuery         string          `json:"user_query"`
	AssistantResponse string          `json:"assistant_response"`
	Calls             []RetrievalCall `json:"api_calls,omitempty"`
}

// RetrievalCall is a write-only audit record of one data-service call made
// while answering a query.
type RetrievalCall struct {
	Service       string         `json:"service"`
	Operation     string         `json:"operation"`
	Indices       []string       `json:"indices,omitempty"`
	DocumentCount int            `json:"document_count,omitempty"`
	Documents     []RetrievedDoc `json:"documents,omitempty"`
	QueryType     string         `json:"query_type,omitempty"`
	SearchTerms   []string       `json:"search_terms,omitempty"`
	Symbol        string         `json:"symbol,omitempty"`
	DataType      string         `json:"data_type,omitempty"`
	Years         int            `json:"years,omitempty"`
}

// RetrievedDoc identifies a document returned by a retrieval call.
type RetrievedDoc struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

// SessionInfo is the externally visible metadata of a session.
type SessionInfo struct {
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccessed  time.Time `json:"last_accessed"`
	ExchangeCount int       `json:"exchange_count"`
	Active        bool      `json:"active"`
}
