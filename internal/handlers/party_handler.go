package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homebase/internal/repositories"
	"homebase/internal/services"
)

type PartyHandler struct {
	repo    repositories.PartyRepository
	context *services.ContextService
}

func NewPartyHandler(repo repositories.PartyRepository, contextSvc *services.ContextService) *PartyHandler {
	return &PartyHandler{repo: repo, context: contextSvc}
}

// GET /parties/:party_id
func (h *PartyHandler) GetByID(c *gin.Context) {
	partyID := getPartyID(c)

	party, err := h.repo.GetByID(c.Request.Context(), partyID)
	if err != nil || party == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "party not found"})
		return
	}
	c.JSON(http.StatusOK, party)
}

// GET /parties/:party_id/members
func (h *PartyHandler) ListMembers(c *gin.Context) {
	partyID := getPartyID(c)

	members, err := h.repo.ListMembers(c.Request.Context(), partyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, members)
}

// GET /parties/:party_id/context
// The assembled household snapshot the assistant is grounded in; useful for
// debugging what the assistant can currently see.
func (h *PartyHandler) Context(c *gin.Context) {
	partyID := getPartyID(c)
	knowledge := h.context.Assemble(c.Request.Context(), partyID)
	c.JSON(http.StatusOK, knowledge)
}
