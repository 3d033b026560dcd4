package agent

import (
	"context"

	"github.com/cargomesh/cargomesh/backend"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/internal/util"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/tool"
)

const warehouseSystemPrompt = `You are the warehouse management specialist of a logistics platform.
You answer questions about inventory levels, inbound and outbound movements, and storage locations.
Use the provided tools to look up live data before answering; never invent stock figures.
Flag items below their reorder threshold when reporting inventory.
Answer in the language of the question.`

const warehouseSchema = `inventory(sku TEXT, item_name TEXT, quantity INTEGER, reorder_level INTEGER, warehouse TEXT)
movements(movement_id TEXT, sku TEXT, direction TEXT, quantity INTEGER, moved_at TEXT, warehouse TEXT)
locations(sku TEXT, warehouse TEXT, zone TEXT, rack TEXT, bin TEXT)`

// NewWarehouse constructs the warehouse-domain agent.
func NewWarehouse(o oracle.Oracle, kb backend.Backend, optFns ...func(o *Options)) *Base {
	return New(Spec{
		Domain:      core.DomainWarehouse,
		Description: "Warehouse management: inventory, inbound/outbound movements, storage locations",
		Keywords: []string{
			"창고", "재고", "입고", "출고", "적재", "보관", "피킹", "팔레트",
			"재고 현황", "입출고",
			"warehouse", "inventory", "stock", "inbound", "outbound", "storage", "picking",
		},
		SystemPrompt: warehouseSystemPrompt,
		SchemaSubset: warehouseSchema,
		BuildTools:   func() []tool.Tool { return warehouseTools(kb) },
	}, o, optFns...)
}

func warehouseTools(kb backend.Backend) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"warehouse_inventory_status",
			"Look up inventory levels, optionally filtered by SKU, item name or warehouse",
			util.ObjectSchema(map[string]any{
				"sku":        util.StringProp("SKU filter, substring match"),
				"item_name":  util.StringProp("item name filter, substring match"),
				"warehouse":  util.StringProp("warehouse filter"),
				"below_only": util.BoolProp("only items at or below reorder level, default false"),
				"limit":      util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				query := `SELECT sku, item_name, quantity, reorder_level, warehouse FROM inventory
					 WHERE (:sku = '' OR sku LIKE '%' || :sku || '%')
					   AND (:item = '' OR item_name LIKE '%' || :item || '%')
					   AND (:wh = '' OR warehouse = :wh)`
				if boolArg(args, "below_only") {
					query += ` AND quantity <= reorder_level`
				}
				query += ` ORDER BY sku LIMIT :limit`
				records, err := kb.ExecuteRead(ctx, query, map[string]any{
					"sku":   strArg(args, "sku"),
					"item":  strArg(args, "item_name"),
					"wh":    strArg(args, "warehouse"),
					"limit": intArg(args, "limit", 10),
				})
				if err != nil {
					return "", err
				}
				return formatRecords("Inventory", records), nil
			},
		),
		tool.NewFunctionTool(
			"warehouse_inbound_outbound",
			"Look up recent inbound and outbound stock movements",
			util.ObjectSchema(map[string]any{
				"sku":       util.StringProp("SKU filter, substring match"),
				"direction": util.StringProp("movement direction: inbound or outbound"),
				"warehouse": util.StringProp("warehouse filter"),
				"limit":     util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT movement_id, sku, direction, quantity, moved_at, warehouse FROM movements
					 WHERE (:sku = '' OR sku LIKE '%' || :sku || '%')
					   AND (:dir = '' OR direction = :dir)
					   AND (:wh = '' OR warehouse = :wh)
					 ORDER BY moved_at DESC LIMIT :limit`,
					map[string]any{
						"sku":   strArg(args, "sku"),
						"dir":   strArg(args, "direction"),
						"wh":    strArg(args, "warehouse"),
						"limit": intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Stock movements", records), nil
			},
		),
		tool.NewFunctionTool(
			"warehouse_storage_location",
			"Look up where an item is stored (warehouse, zone, rack, bin)",
			util.ObjectSchema(map[string]any{
				"sku":   util.StringProp("SKU, substring match"),
				"limit": util.IntProp("maximum results, default 10"),
			}, "sku"),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT sku, warehouse, zone, rack, bin FROM locations
					 WHERE sku LIKE '%' || :sku || '%'
					 ORDER BY warehouse, zone, rack LIMIT :limit`,
					map[string]any{
						"sku":   strArg(args, "sku"),
						"limit": intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Storage locations", records), nil
			},
		),
	}
}
