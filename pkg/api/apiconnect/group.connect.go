package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/pkg/api"
)

// GroupServiceName is the fully-qualified name of the GroupService service.
const GroupServiceName = "splitledger.v1.GroupService"

// Procedure paths of GroupService.
const (
	GroupServiceAddMemberProcedure   = "/splitledger.v1.GroupService/AddMember"
	GroupServiceListMembersProcedure = "/splitledger.v1.GroupService/ListMembers"
)

// GroupServiceHandler is implemented by the group service.
type GroupServiceHandler interface {
	AddMember(context.Context, *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error)
	ListMembers(context.Context, *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error)
}

// NewGroupServiceHandler builds an HTTP handler for svc and returns the path
// to mount it on.
func NewGroupServiceHandler(svc GroupServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	addHandler := connect.NewUnaryHandler(GroupServiceAddMemberProcedure, svc.AddMember, opts...)
	listHandler := connect.NewUnaryHandler(GroupServiceListMembersProcedure, svc.ListMembers, opts...)

	return "/" + GroupServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GroupServiceAddMemberProcedure:
			addHandler.ServeHTTP(w, r)
		case GroupServiceListMembersProcedure:
			listHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// GroupServiceClient calls a remote GroupService.
type GroupServiceClient struct {
	addMember   *connect.Client[api.AddMemberRequest, api.AddMemberResponse]
	listMembers *connect.Client[api.ListMembersRequest, api.ListMembersResponse]
}

// NewGroupServiceClient creates a client for the service at baseURL.
func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GroupServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &GroupServiceClient{
		addMember: connect.NewClient[api.AddMemberRequest, api.AddMemberResponse](
			httpClient, baseURL+GroupServiceAddMemberProcedure, opts...),
		listMembers: connect.NewClient[api.ListMembersRequest, api.ListMembersResponse](
			httpClient, baseURL+GroupServiceListMembersProcedure, opts...),
	}
}

// AddMember calls splitledger.v1.GroupService.AddMember.
func (c *GroupServiceClient) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	return c.addMember.CallUnary(ctx, req)
}

// ListMembers calls splitledger.v1.GroupService.ListMembers.
func (c *GroupServiceClient) ListMembers(ctx context.Context, req *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error) {
	return c.listMembers.CallUnary(ctx, req)
}
