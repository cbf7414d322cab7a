package rag

// Canned user-facing texts. Raw backend errors never leave the server; these
// are the only strings a client sees on a degraded path.
const (
	// NotReadyMessage is returned when a backend is unavailable before any
	// retrieval quota is spent.
	NotReadyMessage = "Sorry, the assistant is not fully available right now. Please try again in a moment."

	// ApologyMessage is the hard floor: returned when both the primary
	// generation and the fallback generation failed.
	ApologyMessage = "Sorry, I ran into a problem answering that. Please try asking again."

	// NoContextMessage is streamed word by word when retrieval found nothing
	// relevant, keeping the chunk-delivery contract uniform for the client.
	NoContextMessage = "I could not find anything in the stored documents that matches your question, so I can only answer from general knowledge. Could you rephrase or add more detail?"
)
