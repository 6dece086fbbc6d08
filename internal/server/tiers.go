package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	pricetierdomain "github.com/smallbiznis/storefront/internal/pricetier/domain"
)

type replaceVariantTiersRequest struct {
	Tiers []pricetierdomain.VariantTierInput `json:"tiers"`
}

type replaceKeycardTiersRequest struct {
	Tiers []pricetierdomain.KeycardTierInput `json:"tiers"`
}

func (s *Server) ListVariantTiers(c *gin.Context) {
	owner, err := variantOwner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tiers, err := s.priceTierSvc.ListActive(c.Request.Context(), owner)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"tiers": pricetierdomain.ToVariantResponses(tiers)}})
}

func (s *Server) ReplaceVariantTiers(c *gin.Context) {
	owner, err := variantOwner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req replaceVariantTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tiers, err := s.priceTierSvc.ReplaceAll(c.Request.Context(), owner, pricetierdomain.VariantRaw(req.Tiers))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"tiers": pricetierdomain.ToVariantResponses(tiers)}})
}

func (s *Server) ListKeycardTiers(c *gin.Context) {
	owner, err := keycardOwner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tiers, err := s.priceTierSvc.ListActive(c.Request.Context(), owner)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"tiers": pricetierdomain.ToKeycardResponses(tiers)}})
}

func (s *Server) ReplaceKeycardTiers(c *gin.Context) {
	owner, err := keycardOwner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req replaceKeycardTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tiers, err := s.priceTierSvc.ReplaceAll(c.Request.Context(), owner, pricetierdomain.KeycardRaw(req.Tiers))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"tiers": pricetierdomain.ToKeycardResponses(tiers)}})
}

func variantOwner(c *gin.Context) (pricetierdomain.Owner, error) {
	id, err := parseSnowflake(c.Param("id"))
	if err != nil {
		return nil, pricetierdomain.ErrInvalidOwner
	}
	return pricetierdomain.VariantOwner{VariantID: id}, nil
}

func keycardOwner(c *gin.Context) (pricetierdomain.Owner, error) {
	designID, err := parseSnowflake(c.Param("design_id"))
	if err != nil {
		return nil, pricetierdomain.ErrInvalidOwner
	}
	lockTechID, err := parseSnowflake(c.Param("lock_technology_id"))
	if err != nil {
		return nil, pricetierdomain.ErrInvalidOwner
	}
	return pricetierdomain.KeycardOwner{DesignID: designID, LockTechnologyID: lockTechID}, nil
}

func parseSnowflake(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, ErrInvalidRequest
	}
	return id, nil
}
