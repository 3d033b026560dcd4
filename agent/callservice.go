package agent

import (
	"context"

	"github.com/cargomesh/cargomesh/backend"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/internal/util"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/tool"
)

const callServiceSystemPrompt = `You are the call service specialist of a logistics platform.
You answer questions about pickup bookings, arrival estimates and payment history.
Use the provided tools to look up live data before answering; never invent booking records.
Answer in the language of the question.`

const callServiceSchema = `bookings(booking_id TEXT, customer TEXT, pickup TEXT, dropoff TEXT, status TEXT, booked_at TEXT)
etas(booking_id TEXT, eta TEXT, distance_km REAL, updated_at TEXT)
payments(payment_id TEXT, booking_id TEXT, customer TEXT, amount REAL, method TEXT, paid_at TEXT)`

// NewCallService constructs the call-service-domain agent.
func NewCallService(o oracle.Oracle, kb backend.Backend, optFns ...func(o *Options)) *Base {
	return New(Spec{
		Domain:      core.DomainCallService,
		Description: "Call service: pickup bookings, arrival estimates, payment history",
		Keywords: []string{
			"호출", "예약", "접수", "콜", "도착 예정", "결제", "요금", "취소",
			"예약 조회", "결제 내역",
			"booking", "reservation", "eta", "pickup", "payment", "fare", "cancel",
		},
		SystemPrompt: callServiceSystemPrompt,
		SchemaSubset: callServiceSchema,
		BuildTools:   func() []tool.Tool { return callServiceTools(kb) },
	}, o, optFns...)
}

func callServiceTools(kb backend.Backend) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"call_booking_status",
			"Look up pickup booking status by booking ID or customer",
			util.ObjectSchema(map[string]any{
				"booking_id":    util.StringProp("booking ID filter, substring match"),
				"customer":      util.StringProp("customer name filter, substring match"),
				"status_filter": util.StringProp("status filter (requested, confirmed, in_progress, completed, cancelled)"),
				"limit":         util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT booking_id, customer, pickup, dropoff, status, booked_at FROM bookings
					 WHERE (:booking = '' OR booking_id LIKE '%' || :booking || '%')
					   AND (:customer = '' OR customer LIKE '%' || :customer || '%')
					   AND (:status = '' OR status = :status)
					 ORDER BY booked_at DESC LIMIT :limit`,
					map[string]any{
						"booking":  strArg(args, "booking_id"),
						"customer": strArg(args, "customer"),
						"status":   strArg(args, "status_filter"),
						"limit":    intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Bookings", records), nil
			},
		),
		tool.NewFunctionTool(
			"call_eta_lookup",
			"Look up the latest arrival estimate for a booking",
			util.ObjectSchema(map[string]any{
				"booking_id": util.StringProp("booking ID, substring match"),
				"limit":      util.IntProp("maximum results, default 10"),
			}, "booking_id"),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT booking_id, eta, distance_km, updated_at FROM etas
					 WHERE booking_id LIKE '%' || :booking || '%'
					 ORDER BY updated_at DESC LIMIT :limit`,
					map[string]any{
						"booking": strArg(args, "booking_id"),
						"limit":   intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Arrival estimates", records), nil
			},
		),
		tool.NewFunctionTool(
			"call_payment_history",
			"Look up payment history by customer or booking ID",
			util.ObjectSchema(map[string]any{
				"customer":   util.StringProp("customer name filter, substring match"),
				"booking_id": util.StringProp("booking ID filter, substring match"),
				"limit":      util.IntProp("maximum results, default 10"),
			}),
			func(ctx context.Context, args map[string]any) (string, error) {
				records, err := kb.ExecuteRead(ctx,
					`SELECT payment_id, booking_id, customer, amount, method, paid_at FROM payments
					 WHERE (:customer = '' OR customer LIKE '%' || :customer || '%')
					   AND (:booking = '' OR booking_id LIKE '%' || :booking || '%')
					 ORDER BY paid_at DESC LIMIT :limit`,
					map[string]any{
						"customer": strArg(args, "customer"),
						"booking":  strArg(args, "booking_id"),
						"limit":    intArg(args, "limit", 10),
					})
				if err != nil {
					return "", err
				}
				return formatRecords("Payments", records), nil
			},
		),
	}
}
