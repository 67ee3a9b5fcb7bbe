package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gaht-identity/internal/identity"
	mdw "gaht-identity/internal/transport/http/middleware"
	resp "gaht-identity/internal/transport/http/response"
)

// AuthHandler exposes the engine's two operations over HTTP and translates
// the typed failure taxonomy into transport status codes.
type AuthHandler struct {
	engine *identity.Engine
	log    *zap.Logger
}

func NewAuthHandler(engine *identity.Engine, log *zap.Logger) *AuthHandler {
	return &AuthHandler{engine: engine, log: log}
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerReq struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	Role              string `json:"role"`
	Name              string `json:"name"`
	LastName          string `json:"lastName"`
	MothersMaidenName string `json:"mothersMaidenName"`
	Email             string `json:"email"`
	CellPhone         string `json:"cellPhone"`
}

// Login handles POST /auth/login and returns {token} on success.
func (h *AuthHandler) Login(c *gin.Context) {
	var in loginReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "invalid request body"))
		return
	}
	tok, err := h.engine.Authenticate(c.Request.Context(), identity.Credentials{
		Username: in.Username,
		Password: in.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"token": tok}))
}

// Register handles POST /auth/register. Success carries no token; the client
// logs in afterwards.
func (h *AuthHandler) Register(c *gin.Context) {
	var in registerReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "invalid request body"))
		return
	}
	err := h.engine.Register(c.Request.Context(), identity.Registration{
		Username:          in.Username,
		Password:          in.Password,
		Role:              in.Role,
		Name:              in.Name,
		LastName:          in.LastName,
		MothersMaidenName: in.MothersMaidenName,
		Email:             in.Email,
		CellPhone:         in.CellPhone,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"message": "user registered successfully"}))
}

// Me echoes the identity embedded in a verified token.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, resp.OK(gin.H{
		"username": c.GetString(mdw.KeyUsername),
		"role":     c.GetString(mdw.KeyRole),
	}))
}

// fail maps the taxonomy to status codes. Credential failures share one
// message whatever the cause; unexpected errors are logged here once, with no
// password, hash or token in the fields, and the client sees a generic body.
func (h *AuthHandler) fail(c *gin.Context, err error) {
	var fe *identity.FieldError
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, fe.Error()))
	case errors.Is(err, identity.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "missing required field"))
	case errors.Is(err, identity.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "username or password is incorrect"))
	case errors.Is(err, identity.ErrDuplicateUsername):
		c.JSON(http.StatusConflict, resp.Error(resp.CodeConflict, "username already exists"))
	case errors.Is(err, identity.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "invalid role"))
	case errors.Is(err, identity.ErrStorageUnavailable):
		h.log.Error("storage failure", zap.String("rid", c.GetString(mdw.KeyRequestID)), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, resp.Error(resp.CodeUnavailable, "service temporarily unavailable"))
	default:
		h.log.Error("unhandled failure", zap.String("rid", c.GetString(mdw.KeyRequestID)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, "internal error"))
	}
}
