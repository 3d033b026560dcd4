package agent

import (
	"context"

	"github.com/cargomesh/cargomesh/backend"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/internal/util"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/tool"
)

const fleetSystemPrompt = `You are the fleet management specialist of a logistics platform.
You answer questions about vehicles, maintenance schedules, drivers and fuel consumption.
Use the provided tools to look up live data before answering; never invent vehicle records.
When a vehicle is under maintenance, say so explicitly - dispatch planning depends on it.
Answer in the language of the question.`

const fleetSchema = `vehicles(plate TEXT, vehicle_type TEXT, status TEXT, mileage INTEGER, driver TEXT)
maintenance(plate TEXT, maintenance_type TEXT, due_date TEXT, last_date TEXT, description TEXT)
drivers(name TEXT, license_class TEXT, assigned_plate TEXT, phone TEXT)
fuel_logs(plate TEXT, filled_at TEXT, liters REAL, cost REAL, odometer INTEGER)`

// NewFleet constructs the fleet-domain agent bound to the shared backend.
func NewFleet(o oracle.Oracle, kb backend.Backend, optFns ...func(o *Options)) *Base {
	return New(Spec{
		Domain:      core.DomainFleet,
		Description: "Fleet management: vehicle status, maintenance schedules, drivers, fuel",
		Keywords: []string{
			"차량", "정비", "소모품", "운전자", "연비", "주유", "타이어", "엔진",
			"차량 상태", "정비 일정",
			"vehicle", "maintenance", "driver", "fleet", "fuel", "tire", "engine",
		},
		SystemPrompt: fleetSystemPrompt,
		SchemaSubset: fleetSchema,
		BuildTools:   func() []tool.Tool { return fleetTools(kb) },
	}, o, optFns...)
}

func fleetTools(kb backend.Backend) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"fleet_vehicle_status",
			"Look up vehicle status, optionally filtered by plate or status (active, inactive, maintenance, retired)",
			util.ObjectSchema(map[string]any{
				"plate":         util.StringProp("license plate filter, substring match"),
				"status_filter": util.StringProp("status filter"),
				"limit":         util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT plate, vehicle_type, status, mileage, driver FROM vehicles
					 WHERE (:plate = '' OR plate LIKE '%' || :plate || '%')
					   AND (:status = '' OR status = :status)
					 ORDER BY plate LIMIT :limit`,
					map[string]any{
						"plate":  strArg(args, "plate"),
						"status": strArg(args, "status_filter"),
						"limit":  intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Vehicle status", records), nil
			},
		),
		tool.NewFunctionTool(
			"fleet_maintenance_schedule",
			"Look up upcoming (or all) maintenance work for the fleet",
			util.ObjectSchema(map[string]any{
				"plate":             util.StringProp("license plate filter, substring match"),
				"include_completed": util.BoolProp("include past maintenance, default false"),
				"limit":             util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				query := `SELECT plate, maintenance_type, due_date, last_date, description FROM maintenance
					 WHERE (:plate = '' OR plate LIKE '%' || :plate || '%')`
				if !boolArg(args, "include_completed") {
					query += ` AND due_date >= date('now')`
				}
				query += ` ORDER BY due_date LIMIT :limit`
				records, err := kb.ExecuteRead(ctx, query, map[string]any{
					"plate": strArg(args, "plate"),
					"limit": intArg(args, "limit", 10),
				})
				if err != nil {
					return "", err
				}
				return formatRecords("Maintenance schedule", records), nil
			},
		),
		tool.NewFunctionTool(
			"fleet_driver_info",
			"Look up driver details and their assigned vehicles",
			util.ObjectSchema(map[string]any{
				"name":  util.StringProp("driver name filter, substring match"),
				"limit": util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT name, license_class, assigned_plate, phone FROM drivers
					 WHERE (:name = '' OR name LIKE '%' || :name || '%')
					 ORDER BY name LIMIT :limit`,
					map[string]any{
						"name":  strArg(args, "name"),
						"limit": intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Drivers", records), nil
			},
		),
		tool.NewFunctionTool(
			"fleet_fuel_consumption",
			"Look up recent fuel fill-ups for a vehicle",
			util.ObjectSchema(map[string]any{
				"plate": util.StringProp("license plate, substring match"),
				"limit": util.IntProp("maximum results, default 10"),
			}, "plate"),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT plate, filled_at, liters, cost, odometer FROM fuel_logs
					 WHERE plate LIKE '%' || :plate || '%'
					 ORDER BY filled_at DESC LIMIT :limit`,
					map[string]any{
						"plate": strArg(args, "plate"),
						"limit": intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Fuel log", records), nil
			},
		),
	}
}
