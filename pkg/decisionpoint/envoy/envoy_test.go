package envoy

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ordermind/logical-permissions-go/pkg/permtree"
)

// setupTestEngine registers a "role" permission type that grants
// "public" to every request and "admin" only when the request's
// destination principal is the admin-service SPIFFE ID, mimicking a
// coarse SPIFFE-ID-based role check.
func setupTestEngine(t *testing.T) *permtree.Engine {
	t.Helper()

	engine := permtree.NewEngine()
	err := engine.AddType("role", func(_ context.Context, value string, permCtx map[string]interface{}) (interface{}, error) {
		destination, _ := permCtx["destination"].(map[string]interface{})
		principal, _ := destination["principal"].(string)
		return value == "admin" && principal == "spiffe://cluster.local/ns/default/sa/admin-service" ||
			value == "public", nil
	})
	require.NoError(t, err)

	return engine
}

func findFreePort(t *testing.T) int {
	t.Helper()
	return 19000 + (os.Getpid() % 1000)
}

func waitForServer(t *testing.T, server *ExtAuthzServer, timeout time.Duration) int {
	t.Helper()
	select {
	case port := <-server.grpcPort:
		time.Sleep(200 * time.Millisecond)
		return port
	case <-time.After(timeout):
		t.Fatal("Server failed to start within timeout")
		return 0
	}
}

func TestEnvoyServer_CreateServer(t *testing.T) {
	engine := setupTestEngine(t)
	port := findFreePort(t)

	server, err := CreateServer(engine, "public", port)
	require.NoError(t, err)
	require.NotNil(t, server)

	extAuthzServer := server.(*ExtAuthzServer)
	actualPort := waitForServer(t, extAuthzServer, 5*time.Second)
	assert.NotEqual(t, 0, actualPort)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}

func TestEnvoyServer_Check_Allow(t *testing.T) {
	engine := setupTestEngine(t)
	port := findFreePort(t)

	server, err := CreateServer(engine, map[string]interface{}{"role": "public"}, port)
	require.NoError(t, err)

	extAuthzServer := server.(*ExtAuthzServer)
	actualPort := waitForServer(t, extAuthzServer, 5*time.Second)

	conn, err := grpc.NewClient(
		fmt.Sprintf("localhost:%d", actualPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := authv3.NewAuthorizationClient(conn)

	request := &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Request: &authv3.AttributeContext_Request{
				Http: &authv3.AttributeContext_HttpRequest{
					Host:   "localhost",
					Path:   "/api/public",
					Method: "GET",
				},
			},
			Destination: &authv3.AttributeContext_Peer{
				Principal: "spiffe://cluster.local/ns/default/sa/test-service",
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, request)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, int32(codes.OK), resp.Status.Code)

	okResponse := resp.GetOkResponse()
	require.NotNil(t, okResponse)

	var foundHeader, decisionHeader *corev3.HeaderValue
	for _, header := range okResponse.Headers {
		switch header.Header.Key {
		case resultHeader:
			foundHeader = header.Header
		case decisionIDHeader:
			decisionHeader = header.Header
		}
	}
	require.NotNil(t, foundHeader)
	assert.Equal(t, resultAllowed, foundHeader.Value)
	require.NotNil(t, decisionHeader)
	assert.NotEmpty(t, decisionHeader.Value)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	assert.NoError(t, server.Stop(ctx2))
}

func TestEnvoyServer_Check_Deny(t *testing.T) {
	engine := setupTestEngine(t)
	port := findFreePort(t)

	server, err := CreateServer(engine, map[string]interface{}{"role": "admin"}, port)
	require.NoError(t, err)

	extAuthzServer := server.(*ExtAuthzServer)
	actualPort := waitForServer(t, extAuthzServer, 5*time.Second)

	conn, err := grpc.NewClient(
		fmt.Sprintf("localhost:%d", actualPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := authv3.NewAuthorizationClient(conn)

	request := &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Request: &authv3.AttributeContext_Request{
				Http: &authv3.AttributeContext_HttpRequest{
					Host:   "localhost",
					Path:   "/api/admin",
					Method: "POST",
				},
			},
			Destination: &authv3.AttributeContext_Peer{
				Principal: "spiffe://cluster.local/ns/default/sa/platform-service",
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, request)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, int32(codes.PermissionDenied), resp.Status.Code)

	deniedResponse := resp.GetDeniedResponse()
	require.NotNil(t, deniedResponse)
	assert.Equal(t, "permission denied", deniedResponse.Body)

	var foundHeader *corev3.HeaderValue
	for _, header := range deniedResponse.Headers {
		if header.Header.Key == resultHeader {
			foundHeader = header.Header
			break
		}
	}
	require.NotNil(t, foundHeader)
	assert.Equal(t, resultDenied, foundHeader.Value)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	assert.NoError(t, server.Stop(ctx2))
}

func TestEnvoyServer_Check_InvalidTreePropagatesError(t *testing.T) {
	engine := setupTestEngine(t)
	port := findFreePort(t)

	server, err := CreateServer(engine, map[string]interface{}{"AND": "not-a-list-or-map"}, port)
	require.NoError(t, err)

	extAuthzServer := server.(*ExtAuthzServer)
	actualPort := waitForServer(t, extAuthzServer, 5*time.Second)

	conn, err := grpc.NewClient(
		fmt.Sprintf("localhost:%d", actualPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := authv3.NewAuthorizationClient(conn)

	request := &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Request: &authv3.AttributeContext_Request{
				Http: &authv3.AttributeContext_HttpRequest{
					Host: "localhost",
					Path: "/api/test",
				},
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.Check(ctx, request)
	assert.Error(t, err)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = server.Stop(ctx2)
}

func TestEnvoyServer_Stop(t *testing.T) {
	engine := setupTestEngine(t)
	port := findFreePort(t)

	server, err := CreateServer(engine, "public", port)
	require.NoError(t, err)

	extAuthzServer := server.(*ExtAuthzServer)
	waitForServer(t, extAuthzServer, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}
