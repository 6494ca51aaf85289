// Package envoy hosts a permission tree engine behind an Envoy
// ext_authz v3 gRPC service, so a proxy can delegate authorization
// decisions to it for every request it forwards.
package envoy

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/ordermind/logical-permissions-go/internal/logging"
	"github.com/ordermind/logical-permissions-go/pkg/config"
	"github.com/ordermind/logical-permissions-go/pkg/decisionpoint"
	"github.com/ordermind/logical-permissions-go/pkg/permtree"
)

var logger = logging.GetLogger("logicalpermissions.decisionpoint")

const agent string = "envoy"

const (
	resultHeader     = "x-ext-authz-check-result"
	receivedHeader   = "x-ext-authz-check-received"
	decisionIDHeader = "x-decision-id"
	resultAllowed    = "allowed"
	resultDenied     = "denied"
)

func returnIfNotTooLong(body string) string {
	// Maximum size of a header accepted by Envoy is 60KiB, so when the request body is bigger than 60KB,
	// we don't return it in a response header to avoid rejecting it by Envoy and returning 431 to the client
	if len(body) > 60000 {
		return "<too-long>"
	}
	return body
}

// ExtAuthzServer implements the ext_authz v3 gRPC check request API,
// deciding each request against a fixed permission tree evaluated by
// an Engine.
type ExtAuthzServer struct {
	grpcServer *grpc.Server
	engine     *permtree.Engine
	tree       permtree.AnyTree

	// For test only
	grpcPort chan int
}

func logRequest(dlog *logging.Logger, allow string, request *authv3.CheckRequest) {
	httpAttrs := request.GetAttributes().GetRequest().GetHttp()
	dlog.Tracef(agent, "logRequest", "[gRPCv3][%s]: %s%s, attributes: %v", allow, httpAttrs.GetHost(),
		httpAttrs.GetPath(),
		request.GetAttributes())
}

func (s *ExtAuthzServer) allow(request *authv3.CheckRequest, decisionID string) *authv3.CheckResponse {
	logRequest(logger.WithDecisionID(decisionID), "allowed", request)
	return &authv3.CheckResponse{
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{
				Headers: []*corev3.HeaderValueOption{
					{
						Header: &corev3.HeaderValue{
							Key:   resultHeader,
							Value: resultAllowed,
						},
					},
					{
						Header: &corev3.HeaderValue{
							Key:   receivedHeader,
							Value: returnIfNotTooLong(request.GetAttributes().String()),
						},
					},
					{
						Header: &corev3.HeaderValue{
							Key:   decisionIDHeader,
							Value: decisionID,
						},
					},
				},
			},
		},
		Status: &status.Status{Code: int32(codes.OK)},
	}
}

func (s *ExtAuthzServer) deny(request *authv3.CheckRequest, decisionID string) *authv3.CheckResponse {
	logRequest(logger.WithDecisionID(decisionID), "denied", request)
	return &authv3.CheckResponse{
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Status: &typev3.HttpStatus{Code: typev3.StatusCode_Forbidden},
				Body:   "permission denied",
				Headers: []*corev3.HeaderValueOption{
					{
						Header: &corev3.HeaderValue{
							Key:   resultHeader,
							Value: resultDenied,
						},
					},
					{
						Header: &corev3.HeaderValue{
							Key:   receivedHeader,
							Value: returnIfNotTooLong(request.GetAttributes().String()),
						},
					},
					{
						Header: &corev3.HeaderValue{
							Key:   decisionIDHeader,
							Value: decisionID,
						},
					},
				},
			},
		},
		Status: &status.Status{Code: int32(codes.PermissionDenied)},
	}
}

// Check implements the ext_authz v3 check request. The request's
// attributes, converted to a plain map, become the evaluation context
// consulted by permission type callbacks and the bypass predicate.
func (s *ExtAuthzServer) Check(ctx context.Context, request *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	decisionID := uuid.NewString()
	dlog := logger.WithDecisionID(decisionID)

	attrs := request.GetAttributes()

	jattrs, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}

	permCtx := make(map[string]interface{})
	if err := json.Unmarshal(jattrs, &permCtx); err != nil {
		return nil, err
	}

	allow, err := s.engine.CheckAccess(ctx, s.tree, permtree.WithContext(permCtx))
	if err != nil {
		dlog.Errorf(agent, "engine.checkaccess", "error evaluating permission tree: %v", err)
		return nil, err
	}

	if allow {
		return s.allow(request, decisionID), nil
	}

	return s.deny(request, decisionID), nil
}

func (s *ExtAuthzServer) startGRPC(address string, wg *sync.WaitGroup) {
	logger.Infof(agent, "start", "Starting Envoy External Authorization gRPC server on %s", address)
	defer func() {
		wg.Done()
		logger.SysInfof("Stopped gRPC server")
	}()

	listener, err := net.Listen("tcp", address)
	if err != nil {
		logger.Fatalf(agent, "net.listen", "Failed to start gRPC server: %v", err)
		return
	}

	s.grpcServer = grpc.NewServer()
	authv3.RegisterAuthorizationServer(s.grpcServer, s)

	// Store the port for test only. Must be after grpcServer is set to avoid race condition.
	s.grpcPort <- listener.Addr().(*net.TCPAddr).Port

	logger.SysInfof("Starting gRPC server at %s", listener.Addr())
	if err := s.grpcServer.Serve(listener); err != nil {
		logger.Fatalf(agent, "grpc.start", "Failed to serve gRPC server: %v", err)
		return
	}
}

func (s *ExtAuthzServer) run(grpcAddr string) {
	var wg sync.WaitGroup
	wg.Add(1)
	go s.startGRPC(grpcAddr, &wg)
	wg.Wait()
}

// CreateServer creates and starts a new Envoy External Authorization
// server. Every request it receives is checked against tree (anything
// engine.CheckAccess accepts) using engine's registered permission
// types and bypass predicate.
func CreateServer(engine *permtree.Engine, tree permtree.AnyTree, port int) (decisionpoint.Server, error) {
	if err := config.Load(); err != nil {
		logger.SysWarnf("configuration failed to load, using built-in log levels: %v", err)
	}

	s := &ExtAuthzServer{
		grpcPort: make(chan int, 1),
		engine:   engine,
		tree:     tree,
	}

	go s.run(fmt.Sprintf(":%d", port))

	return s, nil
}

// Stop gracefully stops the ExtAuthzServer: the underlying gRPC server
// stops accepting new requests and waits for in-flight ones to finish,
// or is stopped immediately once ctx is done.
func (s *ExtAuthzServer) Stop(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	logger.SysInfof("GRPC server stopped")

	return nil
}
