package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/authz-engine/resolution/internal/auth"
	"github.com/authz-engine/resolution/internal/directory"
	"github.com/authz-engine/resolution/internal/evaluator"
	"github.com/authz-engine/resolution/internal/principal"
	"github.com/authz-engine/resolution/internal/roles"
	"github.com/authz-engine/resolution/internal/tenant"
	"github.com/authz-engine/resolution/pkg/types"
)

// Handler exposes the decision engine over HTTP. It is a policy decision
// point: callers forward verified token claims, the edge owns signature
// validation.
type Handler struct {
	builder   *principal.Builder
	evaluator *evaluator.Evaluator
	chains    *roles.ChainBuilder
	directory directory.Directory
	logger    *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(builder *principal.Builder, eval *evaluator.Evaluator, chains *roles.ChainBuilder, dir directory.Directory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == nil {
		dir = directory.Unconfigured()
	}
	return &Handler{
		builder:   builder,
		evaluator: eval,
		chains:    chains,
		directory: dir,
		logger:    logger,
	}
}

// resolve builds the user and tenant contexts from forwarded claims.
func (h *Handler) resolve(c *gin.Context, rawClaims map[string]interface{}) (*types.UserContext, *types.TenantContext) {
	claims := auth.ClaimSetFromMapClaims(jwt.MapClaims(rawClaims), true)
	tenantCtx := tenant.NewGuard().Extract(claims)
	userCtx := h.builder.Build(c.Request.Context(), claims)
	return userCtx, tenantCtx
}

// Check handles POST /v1/check: a single permission decision.
func (h *Handler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Detail: err.Error()})
		return
	}

	userCtx, _ := h.resolve(c, req.Claims)
	decision := h.evaluator.CheckPermission(c.Request.Context(), userCtx, req.Permission)

	c.JSON(http.StatusOK, DecisionResponse{Decision: decision, RequestID: requestID(c)})
}

// Evaluate handles POST /v1/evaluate: a full policy decision.
func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Detail: err.Error()})
		return
	}

	userCtx, tenantCtx := h.resolve(c, req.Claims)
	decision := h.evaluator.Evaluate(c.Request.Context(), req.Policy, userCtx, tenantCtx)

	c.JSON(http.StatusOK, DecisionResponse{Decision: decision, RequestID: requestID(c)})
}

// Context handles POST /v1/context: returns the resolved user context.
// An unauthenticated or incomplete claim set still answers 200 with the
// fail-closed snapshot; the caller can inspect isAuthenticated.
func (h *Handler) Context(c *gin.Context) {
	var req ContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Detail: err.Error()})
		return
	}

	userCtx, _ := h.resolve(c, req.Claims)

	c.JSON(http.StatusOK, ContextResponse{Context: userCtx, RequestID: requestID(c)})
}

// ResolutionChain handles GET /v1/admin/resolution-chain: a debugging
// view of how groups map to roles and permissions for a user. A missing
// tenant is a malformed request, not a denial.
func (h *Handler) ResolutionChain(c *gin.Context) {
	userID := c.Query("userId")
	tenantID := c.Query("tenantId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "userId is required"})
		return
	}
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  tenant.ErrTenantRequired.Error(),
			Detail: "tenantId query parameter is required",
		})
		return
	}

	var groups []string
	if raw := c.Query("groups"); raw != "" {
		for _, g := range strings.Split(raw, ",") {
			if g = strings.TrimSpace(g); g != "" {
				groups = append(groups, g)
			}
		}
	} else {
		fetched, err := h.directory.GetUserGroups(c.Request.Context(), tenantID, userID)
		switch {
		case errors.Is(err, directory.ErrNotConfigured):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:  "groups are required",
				Detail: "no directory is configured; pass groups explicitly",
			})
			return
		case err != nil:
			h.logger.Error("directory lookup failed",
				zap.String("user_id", userID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "directory lookup failed"})
			return
		default:
			groups = fetched
		}
	}

	chain := h.chains.Build(c.Request.Context(), userID, groups)
	c.JSON(http.StatusOK, chain)
}

// Invalidate handles POST /v1/admin/invalidate: drops a principal's cached
// resolution and directory records so the next request resolves against the
// live table. Callers use this when a role or membership change must take
// effect before the cache TTLs expire.
func (h *Handler) Invalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Detail: err.Error()})
		return
	}

	h.builder.Invalidate(c.Request.Context(), req.UserID, req.TenantID)
	if inv, ok := h.directory.(userInvalidator); ok {
		inv.InvalidateUser(c.Request.Context(), req.TenantID, req.UserID)
	}

	c.Status(http.StatusNoContent)
}

// userInvalidator is implemented by directory decorators that cache user
// records.
type userInvalidator interface {
	InvalidateUser(ctx context.Context, tenantID, userID string)
}
