package handler

import (
	"context"

	"google.golang.org/grpc"
)

// FulfillmentClient calls backoffice.v1.Fulfillment with the JSON codec.
type FulfillmentClient struct {
	cc grpc.ClientConnInterface
}

func NewFulfillmentClient(cc grpc.ClientConnInterface) *FulfillmentClient {
	return &FulfillmentClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+fulfillmentServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FulfillmentClient) CreateOrder(ctx context.Context, in *CreateOrderRPC, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "CreateOrder", in, opts)
}

func (c *FulfillmentClient) SetOrderStatus(ctx context.Context, in *SetOrderStatusRPC, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[Ack](ctx, c.cc, "SetOrderStatus", in, opts)
}

func (c *FulfillmentClient) UpdateInventory(ctx context.Context, in *UpdateInventoryRPC, opts ...grpc.CallOption) (*InventoryResponse, error) {
	return invoke[InventoryResponse](ctx, c.cc, "UpdateInventory", in, opts)
}

func (c *FulfillmentClient) GetStock(ctx context.Context, in *GetStockRPC, opts ...grpc.CallOption) (*StockResponse, error) {
	return invoke[StockResponse](ctx, c.cc, "GetStock", in, opts)
}

func (c *FulfillmentClient) SetTicketStatus(ctx context.Context, in *SetTicketStatusRPC, opts ...grpc.CallOption) (*TicketResponse, error) {
	return invoke[TicketResponse](ctx, c.cc, "SetTicketStatus", in, opts)
}

func (c *FulfillmentClient) AssignTicket(ctx context.Context, in *AssignTicketRPC, opts ...grpc.CallOption) (*TicketResponse, error) {
	return invoke[TicketResponse](ctx, c.cc, "AssignTicket", in, opts)
}

func (c *FulfillmentClient) UnassignTicket(ctx context.Context, in *UnassignTicketRPC, opts ...grpc.CallOption) (*TicketResponse, error) {
	return invoke[TicketResponse](ctx, c.cc, "UnassignTicket", in, opts)
}
