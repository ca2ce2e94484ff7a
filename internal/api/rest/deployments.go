package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KevinKickass/MokuCore/internal/api/websocket"
	"github.com/KevinKickass/MokuCore/internal/auth"
	"github.com/KevinKickass/MokuCore/internal/deployment"
	"github.com/KevinKickass/MokuCore/internal/storage"
	"github.com/KevinKickass/MokuCore/internal/types"
)

// readDocument reads the body, checks it against the deployment schema and
// decodes it. On failure the response has been written.
func (s *Server) readDocument(c *gin.Context) (deployment.Document, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEPLOY_400", "Failed to read request body", err.Error()))
		return deployment.Document{}, false
	}

	if err := deployment.ValidateDocumentJSON(raw); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeSchema, "Deployment does not match schema", err.Error()))
		return deployment.Document{}, false
	}

	var doc deployment.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEPLOY_400", "Invalid deployment document", err.Error()))
		return deployment.Document{}, false
	}
	return doc, true
}

// POST /api/v1/deployments/validate
func (s *Server) validateDeployment(c *gin.Context) {
	doc, ok := s.readDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, deployment.CheckDocument(doc, s.lm.Platforms()))
}

// POST /api/v1/deployments?name=
func (s *Server) createDeployment(c *gin.Context) {
	doc, ok := s.readDocument(c)
	if !ok {
		return
	}

	// Report every problem at once instead of the first mutator failure
	if report := deployment.CheckDocument(doc, s.lm.Platforms()); !report.Valid {
		c.JSON(http.StatusUnprocessableEntity, types.NewValidationResponse("Deployment is invalid", report))
		return
	}

	cfg, err := deployment.FromDocument(doc, s.lm.Platforms())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse("DEPLOY_422", "Failed to build deployment", err.Error()))
		return
	}

	if err := cfg.Seal(); err != nil {
		var verr *deployment.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, types.NewValidationResponse("Deployment is invalid", verr.Report))
			return
		}
		c.JSON(http.StatusConflict, types.NewErrorResponse("DEPLOY_409", "Failed to seal deployment", err.Error()))
		return
	}

	stored, err := s.lm.Repository().SaveDeployment(c.Request.Context(), c.Query("name"), cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEPLOY_500", "Failed to store deployment", err.Error()))
		return
	}

	s.logger.Info("Deployment sealed",
		zap.String("id", stored.ID.String()),
		zap.String("name", stored.Name),
		zap.String("platform", stored.Platform),
		zap.String("client", auth.Client(c)))

	s.wsHub.Broadcast(websocket.NewDeploymentMessage(websocket.MessageTypeDeploymentSealed,
		stored.ID.String(), stored.Name, stored.Platform))

	c.JSON(http.StatusCreated, stored)
}

// GET /api/v1/deployments
func (s *Server) listDeployments(c *gin.Context) {
	deployments, err := s.lm.Repository().ListDeployments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEPLOY_500", "Failed to list deployments", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deployments": deployments,
		"count":       len(deployments),
	})
}

func parseDeploymentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEPLOY_400", "Invalid deployment ID", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/v1/deployments/:id
func (s *Server) getDeployment(c *gin.Context) {
	id, ok := parseDeploymentID(c)
	if !ok {
		return
	}

	stored, err := s.lm.Repository().GetDeployment(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse("DEPLOY_404", "Deployment not found", id.String()))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEPLOY_500", "Failed to get deployment", err.Error()))
		return
	}

	c.JSON(http.StatusOK, stored)
}

// DELETE /api/v1/deployments/:id
func (s *Server) deleteDeployment(c *gin.Context) {
	id, ok := parseDeploymentID(c)
	if !ok {
		return
	}

	if err := s.lm.Repository().DeleteDeployment(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse("DEPLOY_404", "Deployment not found", id.String()))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEPLOY_500", "Failed to delete deployment", err.Error()))
		return
	}

	s.wsHub.Broadcast(websocket.NewDeploymentMessage(websocket.MessageTypeDeploymentDeleted, id.String(), "", ""))

	c.JSON(http.StatusOK, gin.H{"message": "Deployment deleted"})
}
