package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"homebase/internal/assistant"
)

type AssistantHandler struct {
	engine *assistant.Engine
}

func NewAssistantHandler(engine *assistant.Engine) *AssistantHandler {
	return &AssistantHandler{engine: engine}
}

// POST /parties/:party_id/assistant/chat
func (h *AssistantHandler) Chat(c *gin.Context) {
	partyID, userID := getPartyID(c), getUserID(c)

	var req struct {
		Messages []assistant.ChatMessage `json:"messages" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[assistant][chat] party=%d user=%d messages=%d", partyID, userID, len(req.Messages))

	result, err := h.engine.Run(c.Request.Context(), assistant.ChatRequest{
		PartyID:  partyID,
		UserID:   userID,
		Messages: req.Messages,
	})
	if err != nil {
		log.Printf("[assistant][chat][err] party=%d: %v", partyID, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[assistant][chat][ok] party=%d steps=%d tools=%d", partyID, result.Steps, len(result.ToolTrace))
	c.JSON(http.StatusOK, result)
}

// POST /parties/:party_id/assistant/chat/stream
// Server-sent events: one "tool" event per executed tool while the turn is
// running, then a final "reply" event.
func (h *AssistantHandler) ChatStream(c *gin.Context) {
	partyID, userID := getPartyID(c), getUserID(c)

	var req struct {
		Messages []assistant.ChatMessage `json:"messages" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	result, err := h.engine.Run(c.Request.Context(), assistant.ChatRequest{
		PartyID:  partyID,
		UserID:   userID,
		Messages: req.Messages,
		Observe: func(exec assistant.ToolExecution) {
			c.SSEvent("tool", exec)
			c.Writer.Flush()
		},
	})
	if err != nil {
		log.Printf("[assistant][stream][err] party=%d: %v", partyID, err)
		c.SSEvent("error", gin.H{"error": "assistant unavailable"})
		c.Writer.Flush()
		return
	}

	c.SSEvent("reply", gin.H{"reply": result.Reply, "steps": result.Steps})
	c.Writer.Flush()
}
