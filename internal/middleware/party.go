package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"homebase/internal/repositories"
)

// PartyGuard resolves the :party_id route param and verifies the
// authenticated user is a member. Non-members get 404, not 403, so the
// response does not reveal whether the party exists.
func PartyGuard(parties repositories.PartyRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		partyID, err := strconv.ParseInt(c.Param("party_id"), 10, 64)
		if err != nil || partyID <= 0 {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "party not found"})
			return
		}

		v, exists := c.Get("user_id")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no user in context"})
			return
		}
		userID, _ := v.(int64)

		ok, err := parties.IsMember(c.Request.Context(), partyID, userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "party not found"})
			return
		}

		c.Set("party_id", partyID)
		c.Next()
	}
}
