package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skaldhq/skald/internal/model"
	"github.com/skaldhq/skald/internal/pkg/response"
	"github.com/skaldhq/skald/internal/service"
)

// KnowledgeHandler exposes one agent's knowledge base over HTTP. The agent
// is resolved per request from the registry, defaulting to the process's
// configured agent.
type KnowledgeHandler struct {
	registry       *service.Registry
	defaultAgentID string
}

func NewKnowledgeHandler(registry *service.Registry, defaultAgentID string) *KnowledgeHandler {
	return &KnowledgeHandler{registry: registry, defaultAgentID: defaultAgentID}
}

func (h *KnowledgeHandler) resolve(c *gin.Context) (*service.KnowledgeService, bool) {
	agentID := c.Query("agent_id")
	if agentID == "" {
		agentID = h.defaultAgentID
	}
	svc, ok := h.registry.Get(agentID)
	if !ok {
		response.Error(c, http.StatusNotFound, "unknown agent")
		return nil, false
	}
	return svc, true
}

type addRequest struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Kind     string                 `json:"kind"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (h *KnowledgeHandler) Add(c *gin.Context) {
	svc, ok := h.resolve(c)
	if !ok {
		return
	}
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request")
		return
	}
	id, err := svc.Add(c.Request.Context(), service.AddRequest{
		ID:       req.ID,
		Text:     req.Text,
		Kind:     req.Kind,
		Metadata: req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

func (h *KnowledgeHandler) List(c *gin.Context) {
	svc, ok := h.resolve(c)
	if !ok {
		return
	}
	limit := 0
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	filters, err := parseFilterParam(c.Query("filters"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid filters")
		return
	}
	resp, err := svc.List(c.Request.Context(), service.ListRequest{
		Limit:   limit,
		Cursor:  c.Query("cursor"),
		SortAsc: c.Query("sort") == "asc",
		Filters: filters,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": resp.Items, "next_cursor": resp.NextCursor})
}

func (h *KnowledgeHandler) Get(c *gin.Context) {
	svc, ok := h.resolve(c)
	if !ok {
		return
	}
	doc, err := svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if doc == nil {
		response.Error(c, http.StatusNotFound, "not found")
		return
	}
	response.Success(c, doc)
}

func (h *KnowledgeHandler) Delete(c *gin.Context) {
	svc, ok := h.resolve(c)
	if !ok {
		return
	}
	if err := svc.Remove(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}

type searchRequest struct {
	Query     string                 `json:"query"`
	Limit     int                    `json:"limit"`
	Threshold *float64               `json:"threshold"`
	Filters   map[string]interface{} `json:"filters"`
}

func (h *KnowledgeHandler) Search(c *gin.Context) {
	svc, ok := h.resolve(c)
	if !ok {
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request")
		return
	}
	results, err := svc.Search(c.Request.Context(), service.SearchRequest{
		Query:     req.Query,
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Filters:   req.Filters,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	if results == nil {
		results = []*model.SearchResult{}
	}
	response.Success(c, gin.H{"items": results})
}

func parseFilterParam(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	var filters map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, err
	}
	return filters, nil
}
