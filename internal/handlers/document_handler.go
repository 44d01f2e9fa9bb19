package handlers

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"homebase/internal/models"
	"homebase/internal/services"
)

type DocumentHandler struct {
	Service   *services.DocumentService
	Retrieval *services.RetrievalService
}

func NewDocumentHandler(service *services.DocumentService, retrieval *services.RetrievalService) *DocumentHandler {
	return &DocumentHandler{Service: service, Retrieval: retrieval}
}

// POST /parties/:party_id/documents
// multipart upload: file + title + category fields
func (h *DocumentHandler) Upload(c *gin.Context) {
	partyID, userID := getPartyID(c), getUserID(c)
	log.Printf("[document][upload] call party=%d user=%d", partyID, userID)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	if fileHeader.Size > services.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = fileHeader.Filename
	}
	category := models.DocumentCategory(c.PostForm("category"))
	if category == "" {
		category = models.DocCategoryOther
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, services.MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	if int64(len(data)) > services.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	doc, err := h.Service.Ingest(c.Request.Context(), partyID, userID, title, category, data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		log.Printf("[document][upload][err] party=%d: %v", partyID, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[document][upload][ok] party=%d id=%d status=%s", partyID, doc.ID, doc.Status)
	c.JSON(http.StatusCreated, doc)
}

// POST /parties/:party_id/documents/text
func (h *DocumentHandler) UploadText(c *gin.Context) {
	partyID, userID := getPartyID(c), getUserID(c)

	var req struct {
		Title    string `json:"title" binding:"required"`
		Category string `json:"category"`
		Text     string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category := models.DocumentCategory(req.Category)
	if category == "" {
		category = models.DocCategoryOther
	}

	doc, err := h.Service.IngestText(c.Request.Context(), partyID, userID, req.Title, category, req.Text)
	if err != nil {
		log.Printf("[document][upload-text][err] party=%d: %v", partyID, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[document][upload-text][ok] party=%d id=%d", partyID, doc.ID)
	c.JSON(http.StatusCreated, doc)
}

// GET /parties/:party_id/documents
func (h *DocumentHandler) List(c *gin.Context) {
	partyID := getPartyID(c)

	var filter models.DocumentFilter
	if v := c.Query("category"); v != "" {
		cat := models.DocumentCategory(v)
		if !models.IsValidDocCategory(cat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		filter.Category = &cat
	}
	if v := c.Query("status"); v != "" {
		status := models.DocumentStatus(v)
		filter.Status = &status
	}

	docs, err := h.Service.List(c.Request.Context(), partyID, filter)
	if err != nil {
		log.Printf("[document][list][err] party=%d: %v", partyID, err)
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// GET /parties/:party_id/documents/:id
func (h *DocumentHandler) GetByID(c *gin.Context) {
	partyID := getPartyID(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	doc, err := h.Service.GetByID(c.Request.Context(), partyID, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GET /parties/:party_id/documents/:id/file
func (h *DocumentHandler) Download(c *gin.Context) {
	partyID := getPartyID(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	path, doc, err := h.Service.FilePath(c.Request.Context(), partyID, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.FileAttachment(path, doc.Title)
}

// DELETE /parties/:party_id/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	partyID := getPartyID(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.Service.Delete(c.Request.Context(), partyID, id); err != nil {
		log.Printf("[document][delete][err] party=%d id=%d: %v", partyID, id, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[document][delete][ok] party=%d id=%d", partyID, id)
	c.Status(http.StatusNoContent)
}

// GET /parties/:party_id/documents/search?q=...&top_k=5
func (h *DocumentHandler) Search(c *gin.Context) {
	partyID := getPartyID(c)

	query := c.Query("q")
	topK := 0
	if v := c.Query("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid top_k"})
			return
		}
		topK = n
	}

	matches, err := h.Retrieval.Search(c.Request.Context(), partyID, query, topK)
	if err != nil {
		log.Printf("[document][search][err] party=%d: %v", partyID, err)
		writeServiceError(c, err)
		return
	}
	if matches == nil {
		matches = []models.ChunkMatch{}
	}
	c.JSON(http.StatusOK, matches)
}
