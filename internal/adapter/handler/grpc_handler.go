package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/backoffice/internal/core/service"
)

const fulfillmentServiceName = "backoffice.v1.Fulfillment"

type CreateOrderRPC struct {
	RequestID  string `json:"request_id"`
	CustomerID int64  `json:"customer_id"`
	ProductID  int64  `json:"product_id"`
	// SalePrice is a decimal string; empty means the product price.
	SalePrice string `json:"sale_price,omitempty"`
}

type SetOrderStatusRPC struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

type UpdateInventoryRPC struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
}

type GetStockRPC struct {
	ProductID int64 `json:"product_id"`
}

type SetTicketStatusRPC struct {
	TicketID int64  `json:"ticket_id"`
	Status   string `json:"status"`
}

type AssignTicketRPC struct {
	TicketID   int64 `json:"ticket_id"`
	EmployeeID int64 `json:"employee_id"`
}

type UnassignTicketRPC struct {
	TicketID int64 `json:"ticket_id"`
}

// FulfillmentServer is the server API of backoffice.v1.Fulfillment.
type FulfillmentServer interface {
	CreateOrder(context.Context, *CreateOrderRPC) (*OrderResponse, error)
	SetOrderStatus(context.Context, *SetOrderStatusRPC) (*Ack, error)
	UpdateInventory(context.Context, *UpdateInventoryRPC) (*InventoryResponse, error)
	GetStock(context.Context, *GetStockRPC) (*StockResponse, error)
	SetTicketStatus(context.Context, *SetTicketStatusRPC) (*TicketResponse, error)
	AssignTicket(context.Context, *AssignTicketRPC) (*TicketResponse, error)
	UnassignTicket(context.Context, *UnassignTicketRPC) (*TicketResponse, error)
}

func unaryMethod[Req, Resp any](name string, call func(FulfillmentServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FulfillmentServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + fulfillmentServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(FulfillmentServer), ctx, req.(*Req))
			})
		},
	}
}

var fulfillmentServiceDesc = grpc.ServiceDesc{
	ServiceName: fulfillmentServiceName,
	HandlerType: (*FulfillmentServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateOrder", FulfillmentServer.CreateOrder),
		unaryMethod("SetOrderStatus", FulfillmentServer.SetOrderStatus),
		unaryMethod("UpdateInventory", FulfillmentServer.UpdateInventory),
		unaryMethod("GetStock", FulfillmentServer.GetStock),
		unaryMethod("SetTicketStatus", FulfillmentServer.SetTicketStatus),
		unaryMethod("AssignTicket", FulfillmentServer.AssignTicket),
		unaryMethod("UnassignTicket", FulfillmentServer.UnassignTicket),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "backoffice/v1/fulfillment",
}

func RegisterFulfillmentServer(s grpc.ServiceRegistrar, srv FulfillmentServer) {
	s.RegisterService(&fulfillmentServiceDesc, srv)
}

type GRPCHandler struct {
	Services
	logger *zap.Logger
}

func NewGRPCHandler(services Services, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{Services: services, logger: logger}
}

func (h *GRPCHandler) fail(method string, err error) error {
	st := grpcError(err)
	h.logger.Debug("rpc failed", zap.String("method", method), zap.Error(err))
	return st
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *CreateOrderRPC) (*OrderResponse, error) {
	in := service.CreateOrderInput{
		RequestID:  req.RequestID,
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
	}
	if req.SalePrice != "" {
		price, err := decimal.NewFromString(req.SalePrice)
		if err != nil {
			return nil, h.fail("CreateOrder", invalidArgument("sale_price %q is not a decimal", req.SalePrice))
		}
		in.SalePrice = &price
	}

	order, err := h.Orders.CreateOrder(ctx, in)
	if err != nil {
		return nil, h.fail("CreateOrder", err)
	}
	resp := newOrderResponse(order)
	return &resp, nil
}

func (h *GRPCHandler) SetOrderStatus(ctx context.Context, req *SetOrderStatusRPC) (*Ack, error) {
	if err := h.Orders.SetOrderStatus(ctx, req.OrderID, req.Status); err != nil {
		return nil, h.fail("SetOrderStatus", err)
	}
	return &Ack{Success: true, Message: "Order status updated to " + req.Status}, nil
}

func (h *GRPCHandler) UpdateInventory(ctx context.Context, req *UpdateInventoryRPC) (*InventoryResponse, error) {
	inv, err := h.Inventory.UpdateInventory(ctx, req.ProductID, req.Quantity, req.Reason, req.Notes)
	if err != nil {
		return nil, h.fail("UpdateInventory", err)
	}
	resp := newInventoryResponse(inv)
	return &resp, nil
}

func (h *GRPCHandler) GetStock(ctx context.Context, req *GetStockRPC) (*StockResponse, error) {
	quantity, err := h.Inventory.Stock(ctx, req.ProductID)
	if err != nil {
		return nil, h.fail("GetStock", err)
	}
	return &StockResponse{ProductID: req.ProductID, Quantity: quantity}, nil
}

func (h *GRPCHandler) SetTicketStatus(ctx context.Context, req *SetTicketStatusRPC) (*TicketResponse, error) {
	ticket, err := h.Tickets.SetTicketStatus(ctx, req.TicketID, req.Status)
	if err != nil {
		return nil, h.fail("SetTicketStatus", err)
	}
	resp := newTicketResponse(ticket)
	return &resp, nil
}

func (h *GRPCHandler) AssignTicket(ctx context.Context, req *AssignTicketRPC) (*TicketResponse, error) {
	ticket, err := h.Tickets.AssignTicket(ctx, req.TicketID, req.EmployeeID)
	if err != nil {
		return nil, h.fail("AssignTicket", err)
	}
	resp := newTicketResponse(ticket)
	return &resp, nil
}

func (h *GRPCHandler) UnassignTicket(ctx context.Context, req *UnassignTicketRPC) (*TicketResponse, error) {
	ticket, err := h.Tickets.UnassignTicket(ctx, req.TicketID)
	if err != nil {
		return nil, h.fail("UnassignTicket", err)
	}
	resp := newTicketResponse(ticket)
	return &resp, nil
}
