// Package trace defines the envelope passed between pipeline stages and the
// sinks that record it.
package trace

import (
	"github.com/google/uuid"

	"github.com/hyperjump/kotae/internal/models"
)

// Type is the kind of a trace message.
type Type string

const (
	// TypeDocumentParsed carries the chunks of one ingestion batch.
	TypeDocumentParsed Type = "DOCUMENT_PARSED"
	// TypeDocumentsStored acknowledges that a batch was embedded and persisted.
	TypeDocumentsStored Type = "DOCUMENTS_STORED"
	// TypeRetrievalResult carries the chunks retrieved for a question.
	TypeRetrievalResult Type = "RETRIEVAL_RESULT"
	// TypeAnswerGenerated carries the final answer for a question.
	TypeAnswerGenerated Type = "ANSWER_GENERATED"
)

// Agent identifiers used as message senders and receivers.
const (
	AgentIngestion   = "IngestionAgent"
	AgentRetrieval   = "RetrievalAgent"
	AgentLLMResponse = "LLMResponseAgent"
	AgentCoordinator = "Coordinator"
)

// Message is one hand-off between pipeline stages.
type Message struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Type     Type   `json:"type"`
	TraceID  string `json:"trace_id"`
	Payload  any    `json:"payload"`
}

// New builds a message. When traceID is empty a fresh one is generated;
// otherwise it is kept unchanged.
func New(sender, receiver string, typ Type, payload any, traceID string) Message {
	if traceID == "" {
		traceID = NewID()
	}
	return Message{
		Sender:   sender,
		Receiver: receiver,
		Type:     typ,
		TraceID:  traceID,
		Payload:  payload,
	}
}

// NewID returns a fresh, globally unique trace id.
func NewID() string {
	return uuid.NewString()
}

// FileFailure reports one file of a batch that could not be ingested.
type FileFailure struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// DocumentParsed is the payload of TypeDocumentParsed.
type DocumentParsed struct {
	Documents []models.Chunk `json:"documents"`
	Failures  []FileFailure  `json:"failures,omitempty"`
}

// DocumentsStored is the payload of TypeDocumentsStored.
type DocumentsStored struct {
	Collection string   `json:"collection"`
	Stored     int      `json:"stored"`
	IDs        []string `json:"ids"`
}

// RetrievalResult is the payload of TypeRetrievalResult.
type RetrievalResult struct {
	Query            string   `json:"query"`
	RetrievedContext []string `json:"retrieved_context"`
	Sources          []string `json:"sources"`
}

// AnswerGenerated is the payload of TypeAnswerGenerated.
type AnswerGenerated struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}
