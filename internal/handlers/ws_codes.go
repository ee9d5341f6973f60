// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the realtime handler.
const (
	BadSubprotocolError   = 3000 // Client connected without the realtime subprotocol.
	InvalidAuthTokenError = 3001 // Missing, invalid or expired session token.
)
