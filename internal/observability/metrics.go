package observability

import "github.com/prometheus/client_golang/prometheus"

// Result label values shared by the domain counters.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	// ListingsCreated counts listings persisted by providers.
	ListingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zerohunger_listings_created_total",
			Help: "Total number of food listings created.",
		},
	)

	// RequestAdmissions counts submit-request outcomes. "rejected" means the
	// listing was no longer available.
	RequestAdmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zerohunger_requests_total",
			Help: "Food request submissions by result.",
		},
		[]string{"result"},
	)

	// Assignments counts accept outcomes. "rejected" means the request was no
	// longer pending.
	Assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zerohunger_assignments_total",
			Help: "Delivery assignment attempts by result.",
		},
		[]string{"result"},
	)

	// OTPVerifications counts OTP submissions by phase (pickup/delivery) and result.
	OTPVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zerohunger_otp_verifications_total",
			Help: "OTP verification attempts by phase and result.",
		},
		[]string{"phase", "result"},
	)
)

func init() {
	prometheus.MustRegister(ListingsCreated, RequestAdmissions, Assignments, OTPVerifications)
}
