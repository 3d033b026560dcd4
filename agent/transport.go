package agent

import (
	"context"

	"github.com/cargomesh/cargomesh/backend"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/internal/util"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/tool"
)

const transportSystemPrompt = `You are the transport management specialist of a logistics platform.
You answer questions about shipments, dispatch planning and delivery routes.
Use the provided tools to look up live data before answering; never invent shipment records.
If the request mentions vehicle availability constraints from a previous context, honor them
when proposing dispatch assignments.
Answer in the language of the question.`

const transportSchema = `shipments(tracking_no TEXT, origin TEXT, destination TEXT, status TEXT, assigned_plate TEXT, eta TEXT)
dispatches(dispatch_id TEXT, plate TEXT, driver TEXT, route TEXT, departure TEXT, status TEXT)
routes(route TEXT, origin TEXT, destination TEXT, distance_km REAL, duration_min INTEGER)`

// NewTransport constructs the transport-domain agent. Transport is the
// platform's default domain: ambiguous requests land here.
func NewTransport(o oracle.Oracle, kb backend.Backend, optFns ...func(o *Options)) *Base {
	return New(Spec{
		Domain:      core.DomainTransport,
		Description: "Transport management: shipment tracking, dispatch planning, delivery routes",
		Keywords: []string{
			"배송", "배차", "운송", "출발", "도착", "경로", "화물", "운행", "트럭킹",
			"배송 조회", "배차 계획",
			"delivery", "shipment", "dispatch", "route", "cargo", "transport", "tracking",
		},
		SystemPrompt: transportSystemPrompt,
		SchemaSubset: transportSchema,
		BuildTools:   func() []tool.Tool { return transportTools(kb) },
	}, o, optFns...)
}

func transportTools(kb backend.Backend) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"transport_shipment_status",
			"Look up shipment status by tracking number, destination or status",
			util.ObjectSchema(map[string]any{
				"tracking_no":   util.StringProp("tracking number filter, substring match"),
				"destination":   util.StringProp("destination filter, substring match"),
				"status_filter": util.StringProp("status filter (pending, in_transit, delivered, delayed)"),
				"limit":         util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT tracking_no, origin, destination, status, assigned_plate, eta FROM shipments
					 WHERE (:tracking = '' OR tracking_no LIKE '%' || :tracking || '%')
					   AND (:dest = '' OR destination LIKE '%' || :dest || '%')
					   AND (:status = '' OR status = :status)
					 ORDER BY eta LIMIT :limit`,
					map[string]any{
						"tracking": strArg(args, "tracking_no"),
						"dest":     strArg(args, "destination"),
						"status":   strArg(args, "status_filter"),
						"limit":    intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Shipments", records), nil
			},
		),
		tool.NewFunctionTool(
			"transport_dispatch_plan",
			"Look up the dispatch plan: which vehicle and driver runs which route",
			util.ObjectSchema(map[string]any{
				"plate":         util.StringProp("license plate filter, substring match"),
				"status_filter": util.StringProp("dispatch status filter (planned, departed, completed, cancelled)"),
				"limit":         util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT dispatch_id, plate, driver, route, departure, status FROM dispatches
					 WHERE (:plate = '' OR plate LIKE '%' || :plate || '%')
					   AND (:status = '' OR status = :status)
					 ORDER BY departure LIMIT :limit`,
					map[string]any{
						"plate":  strArg(args, "plate"),
						"status": strArg(args, "status_filter"),
						"limit":  intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Dispatch plan", records), nil
			},
		),
		tool.NewFunctionTool(
			"transport_route_info",
			"Look up delivery route details: distance and typical duration",
			util.ObjectSchema(map[string]any{
				"origin":      util.StringProp("origin filter, substring match"),
				"destination": util.StringProp("destination filter, substring match"),
				"limit":       util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT route, origin, destination, distance_km, duration_min FROM routes
					 WHERE (:origin = '' OR origin LIKE '%' || :origin || '%')
					   AND (:dest = '' OR destination LIKE '%' || :dest || '%')
					 ORDER BY route LIMIT :limit`,
					map[string]any{
						"origin": strArg(args, "origin"),
						"dest":   strArg(args, "destination"),
						"limit":  intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Routes", records), nil
			},
		),
	}
}
