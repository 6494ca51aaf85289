// Package http hosts a permission tree engine behind a REST API
// suitable for a policy enforcement point that would rather speak
// plain JSON over HTTP than a gRPC ext_authz protocol.
package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ordermind/logical-permissions-go/internal/logging"
	"github.com/ordermind/logical-permissions-go/pkg/config"
	"github.com/ordermind/logical-permissions-go/pkg/decisionpoint"
	"github.com/ordermind/logical-permissions-go/pkg/permtree"
)

var logger = logging.GetLogger("logicalpermissions.decisionpoint")

const agent string = "http"

// CheckAccessRequest is the POST /v1/check-access request body.
type CheckAccessRequest struct {
	// Tree is a permission tree in any shape [permtree.Engine.CheckAccess]
	// accepts: a bool, a string, a list, or a nested map.
	Tree permtree.AnyTree `json:"tree"`

	// Context supplies the evaluation context consulted by permission
	// type callbacks and the bypass predicate. Optional.
	Context map[string]interface{} `json:"context,omitempty"`

	// AllowBypass disables the bypass predicate for this call when set
	// to false explicitly. Leaving it out, or setting it to true, keeps
	// the Engine's own allow_bypass default (see
	// [permtree.Engine.CheckAccess]), which is true unless configured
	// otherwise.
	AllowBypass *bool `json:"allow_bypass,omitempty"`
}

// CheckAccessResponse is the POST /v1/check-access response body.
type CheckAccessResponse struct {
	Allow      bool   `json:"allow"`
	DecisionID string `json:"decision_id"`
}

// errorResponse is the response body for a failed request.
type errorResponse struct {
	Error      string `json:"error"`
	DecisionID string `json:"decision_id"`
}

// Server implements the REST decision point API.
type Server struct {
	echo *echo.Echo
}

func checkAccessHandler(engine *permtree.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		decisionID := uuid.NewString()
		dlog := logger.WithDecisionID(decisionID)

		var req CheckAccessRequest
		if err := c.Bind(&req); err != nil {
			dlog.Warnf(agent, "bind", "malformed request body: %v", err)
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), DecisionID: decisionID})
		}

		opts := []permtree.EvalOption{permtree.WithContext(req.Context)}
		if req.AllowBypass != nil && !*req.AllowBypass {
			opts = append(opts, permtree.WithoutBypass())
		}

		allow, err := engine.CheckAccess(c.Request().Context(), req.Tree, opts...)
		if err != nil {
			dlog.Warnf(agent, "checkaccess", "denying request after evaluation error: %v", err)
			return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), DecisionID: decisionID})
		}

		dlog.Debugf(agent, "checkaccess", "allow=%t", allow)
		return c.JSON(http.StatusOK, CheckAccessResponse{Allow: allow, DecisionID: decisionID})
	}
}

// CreateServer creates and starts a new REST decision point server
// backed by engine, listening on port.
func CreateServer(engine *permtree.Engine, port int) (decisionpoint.Server, error) {
	if err := config.Load(); err != nil {
		logger.SysWarnf("configuration failed to load, using built-in log levels: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/v1/check-access", checkAccessHandler(engine))

	go func() {
		if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && err != http.ErrServerClosed {
			logger.Fatalf(agent, "start", "REST decision point server failed: %v", err)
		}
	}()

	return &Server{echo: e}, nil
}

// Stop gracefully stops the Server by shutting down the Echo HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
