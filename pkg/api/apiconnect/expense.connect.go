// Package apiconnect wires the splitledger.v1 services to Connect handlers
// and clients.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/pkg/api"
)

// ExpenseServiceName is the fully-qualified name of the ExpenseService service.
const ExpenseServiceName = "splitledger.v1.ExpenseService"

// Procedure paths of ExpenseService.
const (
	ExpenseServiceParseExpenseProcedure                 = "/splitledger.v1.ExpenseService/ParseExpense"
	ExpenseServiceCreateExpenseFromDescriptionProcedure = "/splitledger.v1.ExpenseService/CreateExpenseFromDescription"
	ExpenseServiceGetExpenseProcedure                   = "/splitledger.v1.ExpenseService/GetExpense"
)

// ExpenseServiceHandler is implemented by the expense service.
type ExpenseServiceHandler interface {
	ParseExpense(context.Context, *connect.Request[api.ParseExpenseRequest]) (*connect.Response[api.ParseExpenseResponse], error)
	CreateExpenseFromDescription(context.Context, *connect.Request[api.CreateExpenseFromDescriptionRequest]) (*connect.Response[api.CreateExpenseFromDescriptionResponse], error)
	GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler for svc and returns the
// path to mount it on.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	parseHandler := connect.NewUnaryHandler(ExpenseServiceParseExpenseProcedure, svc.ParseExpense, opts...)
	createHandler := connect.NewUnaryHandler(ExpenseServiceCreateExpenseFromDescriptionProcedure, svc.CreateExpenseFromDescription, opts...)
	getHandler := connect.NewUnaryHandler(ExpenseServiceGetExpenseProcedure, svc.GetExpense, opts...)

	return "/" + ExpenseServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ExpenseServiceParseExpenseProcedure:
			parseHandler.ServeHTTP(w, r)
		case ExpenseServiceCreateExpenseFromDescriptionProcedure:
			createHandler.ServeHTTP(w, r)
		case ExpenseServiceGetExpenseProcedure:
			getHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ExpenseServiceClient calls a remote ExpenseService.
type ExpenseServiceClient struct {
	parseExpense                 *connect.Client[api.ParseExpenseRequest, api.ParseExpenseResponse]
	createExpenseFromDescription *connect.Client[api.CreateExpenseFromDescriptionRequest, api.CreateExpenseFromDescriptionResponse]
	getExpense                   *connect.Client[api.GetExpenseRequest, api.GetExpenseResponse]
}

// NewExpenseServiceClient creates a client for the service at baseURL.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &ExpenseServiceClient{
		parseExpense: connect.NewClient[api.ParseExpenseRequest, api.ParseExpenseResponse](
			httpClient, baseURL+ExpenseServiceParseExpenseProcedure, opts...),
		createExpenseFromDescription: connect.NewClient[api.CreateExpenseFromDescriptionRequest, api.CreateExpenseFromDescriptionResponse](
			httpClient, baseURL+ExpenseServiceCreateExpenseFromDescriptionProcedure, opts...),
		getExpense: connect.NewClient[api.GetExpenseRequest, api.GetExpenseResponse](
			httpClient, baseURL+ExpenseServiceGetExpenseProcedure, opts...),
	}
}

// ParseExpense calls splitledger.v1.ExpenseService.ParseExpense.
func (c *ExpenseServiceClient) ParseExpense(ctx context.Context, req *connect.Request[api.ParseExpenseRequest]) (*connect.Response[api.ParseExpenseResponse], error) {
	return c.parseExpense.CallUnary(ctx, req)
}

// CreateExpenseFromDescription calls splitledger.v1.ExpenseService.CreateExpenseFromDescription.
func (c *ExpenseServiceClient) CreateExpenseFromDescription(ctx context.Context, req *connect.Request[api.CreateExpenseFromDescriptionRequest]) (*connect.Response[api.CreateExpenseFromDescriptionResponse], error) {
	return c.createExpenseFromDescription.CallUnary(ctx, req)
}

// GetExpense calls splitledger.v1.ExpenseService.GetExpense.
func (c *ExpenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}
