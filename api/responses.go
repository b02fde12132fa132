package api

import (
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type packageResponse struct {
	ID             string          `json:"id"`
	AgentID        string          `json:"agent_id"`
	Title          string          `json:"title"`
	Destination    string          `json:"destination,omitempty"`
	Duration       string          `json:"duration,omitempty"`
	Description    string          `json:"description,omitempty"`
	Price          decimal.Decimal `json:"price"`
	TourStart      string          `json:"tour_start,omitempty"`
	TourEnd        string          `json:"tour_end,omitempty"`
	Status         string          `json:"status"`
	AllowedActions []domain.Action `json:"allowed_actions"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

type bookingResponse struct {
	ID                 string          `json:"id"`
	PackageID          string          `json:"package_id"`
	CustomerID         string          `json:"customer_id"`
	AgentID            string          `json:"agent_id"`
	TouristsCount      int             `json:"tourists_count"`
	TourStartDate      string          `json:"tour_start_date"`
	BookingDate        string          `json:"booking_date"`
	Amount             decimal.Decimal `json:"amount"`
	Status             string          `json:"status"`
	HiddenFromCustomer bool            `json:"hidden_from_customer"`
	AllowedActions     []domain.Action `json:"allowed_actions"`
	UpdatedAt          string          `json:"updated_at"`
}

type paymentResponse struct {
	ID             string          `json:"id"`
	BookingID      string          `json:"booking_id"`
	CustomerID     string          `json:"customer_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	Status         string          `json:"status"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	ExpiresAt      string          `json:"expires_at"`
	AllowedActions []domain.Action `json:"allowed_actions"`
	UpdatedAt      string          `json:"updated_at"`
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func nonNil(actions []domain.Action) []domain.Action {
	if actions == nil {
		return []domain.Action{}
	}
	return actions
}

func toPackageResponse(p domain.Package, role domain.Role) packageResponse {
	return packageResponse{
		ID:             p.ID,
		AgentID:        p.AgentID,
		Title:          p.Title,
		Destination:    p.Destination,
		Duration:       p.Duration,
		Description:    p.Description,
		Price:          p.Price,
		TourStart:      formatDate(p.TourStart),
		TourEnd:        formatDate(p.TourEnd),
		Status:         string(p.Status),
		AllowedActions: nonNil(domain.PackageActions(p, role)),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}

func toPackageResponses(packages []domain.Package, role domain.Role) []packageResponse {
	out := make([]packageResponse, 0, len(packages))
	for _, p := range packages {
		out = append(out, toPackageResponse(p, role))
	}
	return out
}

func toBookingResponse(b domain.Booking, role domain.Role) bookingResponse {
	return bookingResponse{
		ID:                 b.ID,
		PackageID:          b.PackageID,
		CustomerID:         b.CustomerID,
		AgentID:            b.AgentID,
		TouristsCount:      b.TouristsCount,
		TourStartDate:      b.TourStartDate.Format(dateLayout),
		BookingDate:        b.BookingDate.Format(time.RFC3339),
		Amount:             b.Amount,
		Status:             string(b.Status),
		HiddenFromCustomer: b.HiddenFromCustomer,
		AllowedActions:     nonNil(domain.BookingActions(b, role)),
		UpdatedAt:          b.UpdatedAt.Format(time.RFC3339),
	}
}

func toBookingResponses(bookings []domain.Booking, role domain.Role) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b, role))
	}
	return out
}

func toPaymentResponse(p domain.Payment, role domain.Role) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		BookingID:      p.BookingID,
		CustomerID:     p.CustomerID,
		Amount:         p.Amount,
		Method:         p.Method,
		Status:         string(p.Status),
		FailureReason:  p.FailureReason,
		ExpiresAt:      p.ExpiresAt.Format(time.RFC3339),
		AllowedActions: nonNil(domain.PaymentActions(p, role)),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}

type paymentStatsResponse struct {
	Pending   int             `json:"pending_payments"`
	Success   int             `json:"success_payments"`
	Failed    int             `json:"failed_payments"`
	Refunded  int             `json:"refunded_payments"`
	Total     int             `json:"total_payments"`
	Collected decimal.Decimal `json:"collected_amount"`
}

func toPaymentStatsResponse(s domain.PaymentStats) paymentStatsResponse {
	return paymentStatsResponse{
		Pending:   s.Pending,
		Success:   s.Success,
		Failed:    s.Failed,
		Refunded:  s.Refunded,
		Total:     s.Total,
		Collected: s.Collected,
	}
}

func toPaymentResponses(payments []domain.Payment, role domain.Role) []paymentResponse {
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p, role))
	}
	return out
}
