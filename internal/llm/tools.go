package llm

import openrouter "github.com/revrost/go-openrouter"

// Tool names the assistant may call.
const (
	ToolOrderSummary = "GetOrderSummary"
	ToolListVendors  = "ListVendors"
	ToolVendorLedger = "GetVendorLedger"
	ToolListOrders   = "ListOrders"
)

func ToolSchemas() []openrouter.Tool {
	return []openrouter.Tool{
		orderSummaryTool(),
		listVendorsTool(),
		vendorLedgerTool(),
		listOrdersTool(),
	}
}

func orderSummaryTool() openrouter.Tool {
	return openrouter.Tool{
		Type: openrouter.ToolTypeFunction,
		Function: &openrouter.FunctionDefinition{
			Name:        ToolOrderSummary,
			Description: "Order counts per period as shown on the dashboard. Returns periods with label and count, plus the total.",
			Parameters: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
		},
	}
}

func listVendorsTool() openrouter.Tool {
	return openrouter.Tool{
		Type: openrouter.ToolTypeFunction,
		Function: &openrouter.FunctionDefinition{
			Name:        ToolListVendors,
			Description: "List vendors with id, name, phone and commission. Use it to resolve a vendor name to an id.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"search": map[string]any{
						"type":        "string",
						"description": "Optional case-insensitive filter on vendor name or phone.",
					},
				},
				"additionalProperties": false,
			},
		},
	}
}

func vendorLedgerTool() openrouter.Tool {
	return openrouter.Tool{
		Type: openrouter.ToolTypeFunction,
		Function: &openrouter.FunctionDefinition{
			Name:        ToolVendorLedger,
			Description: "Payment ledger of one vendor: cleared amount, and pending subtotal, commission and payable per commission model (margin, percentage).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"vendor_id": map[string]any{
						"type":        "string",
						"description": "Vendor id from ListVendors.",
					},
				},
				"required":             []string{"vendor_id"},
				"additionalProperties": false,
			},
		},
	}
}

func listOrdersTool() openrouter.Tool {
	return openrouter.Tool{
		Type: openrouter.ToolTypeFunction,
		Function: &openrouter.FunctionDefinition{
			Name:        ToolListOrders,
			Description: "Most recent orders with id, customer, status, bill amount and creation time.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status": map[string]any{
						"type":        "string",
						"description": "Optional status filter, e.g. pending, delivered, cancelled.",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of orders to return. Default 20.",
					},
				},
				"additionalProperties": false,
			},
		},
	}
}
