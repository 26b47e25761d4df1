package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tbourn/go-zerohunger-backend/internal/http/middleware"
)

type deliveryWorld struct {
	api                   *testAPI
	provider, receiver    string
	courier, otherCourier string
	listingID, requestID  string
}

func newDeliveryWorld(t *testing.T) *deliveryWorld {
	t.Helper()
	api := newTestAPI(t, 0)
	w := &deliveryWorld{api: api}
	w.provider, _ = api.register(t, "provider1")
	w.receiver, _ = api.register(t, "alice")
	w.courier, _ = api.register(t, "rider1")
	w.otherCourier, _ = api.register(t, "rider2")
	w.listingID = api.createListing(t, w.provider, "Fried rice", "Rice", "Colombo")

	resp := api.do(t, http.MethodPost, "/listings/"+w.listingID+"/requests", w.receiver, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("submit: status=%d", resp.Code)
	}
	var fr struct {
		ID string `json:"id"`
	}
	decode(t, resp, &fr)
	w.requestID = fr.ID
	return w
}

func (w *deliveryWorld) accept(t *testing.T) string {
	t.Helper()
	resp := w.api.do(t, http.MethodPost, "/delivery/requests/"+w.requestID+"/accept", w.courier, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("accept: status=%d body=%s", resp.Code, resp.Body.String())
	}
	var a struct {
		ID string `json:"id"`
	}
	decode(t, resp, &a)
	return a.ID
}

// otps reads the pickup code from the provider's view and the delivery code
// from the receiver's view.
func (w *deliveryWorld) otps(t *testing.T) (pickup, delivery string) {
	t.Helper()
	var pv, rv RequestViewsResponse
	decode(t, w.api.do(t, http.MethodGet, "/provider/requests", w.provider, nil), &pv)
	decode(t, w.api.do(t, http.MethodGet, "/receiver/requests", w.receiver, nil), &rv)
	if len(pv.Requests) != 1 || len(rv.Requests) != 1 {
		t.Fatalf("views: provider=%d receiver=%d", len(pv.Requests), len(rv.Requests))
	}
	if pv.Requests[0].DeliveryOTP != "" || rv.Requests[0].PickupOTP != "" {
		t.Fatalf("a view exposes the other party's code")
	}
	return pv.Requests[0].PickupOTP, rv.Requests[0].DeliveryOTP
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestPickupRequestsAndLocations(t *testing.T) {
	w := newDeliveryWorld(t)

	resp := w.api.do(t, http.MethodGet, "/delivery/requests?location=colombo", w.courier, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	var views RequestViewsResponse
	decode(t, resp, &views)
	if len(views.Requests) != 1 || views.Requests[0].Request.ID != w.requestID {
		t.Fatalf("views=%+v", views.Requests)
	}
	if views.Requests[0].PickupOTP != "" || views.Requests[0].DeliveryOTP != "" {
		t.Fatalf("courier view carries codes")
	}

	decode(t, w.api.do(t, http.MethodGet, "/delivery/requests?location=Kandy", w.courier, nil), &views)
	if len(views.Requests) != 0 {
		t.Fatalf("kandy views=%+v", views.Requests)
	}

	var locs LocationsResponse
	decode(t, w.api.do(t, http.MethodGet, "/delivery/locations", w.courier, nil), &locs)
	if len(locs.Locations) != 1 || locs.Locations[0] != "Colombo" {
		t.Fatalf("locations=%v", locs.Locations)
	}
}

func TestAcceptRequest_OnceWithReplay(t *testing.T) {
	w := newDeliveryWorld(t)
	path := "/delivery/requests/" + w.requestID + "/accept"

	first := w.api.do(t, http.MethodPost, path, w.courier, nil, "Idempotency-Key", "acc-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("accept: status=%d body=%s", first.Code, first.Body.String())
	}
	// Codes never travel in the assignment body.
	if strings.Contains(first.Body.String(), "otp") {
		t.Fatalf("assignment body mentions otp: %s", first.Body.String())
	}

	retry := w.api.do(t, http.MethodPost, path, w.courier, nil, "Idempotency-Key", "acc-1")
	if retry.Code != http.StatusCreated || retry.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("retry: status=%d replayed=%q", retry.Code, retry.Header().Get(middleware.HeaderIdempotencyReplayed))
	}
	var a, b struct {
		ID string `json:"id"`
	}
	decode(t, first, &a)
	decode(t, retry, &b)
	if a.ID != b.ID {
		t.Fatalf("replay id %q, first %q", b.ID, a.ID)
	}

	if resp := w.api.do(t, http.MethodPost, path, w.otherCourier, nil); resp.Code != http.StatusConflict {
		t.Fatalf("second courier: status=%d", resp.Code)
	}
	if resp := w.api.do(t, http.MethodPost, "/delivery/requests/"+uuid.NewString()+"/accept", w.courier, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown request: status=%d", resp.Code)
	}

	// No longer pending, so no longer offered.
	var views RequestViewsResponse
	decode(t, w.api.do(t, http.MethodGet, "/delivery/requests", w.otherCourier, nil), &views)
	if len(views.Requests) != 0 {
		t.Fatalf("assigned request still offered")
	}
}

func TestVerifyOTP_FullDelivery(t *testing.T) {
	w := newDeliveryWorld(t)
	id := w.accept(t)
	pickup, delivery := w.otps(t)
	if len(pickup) != 6 || len(delivery) != 6 {
		t.Fatalf("codes pickup=%q delivery=%q", pickup, delivery)
	}
	base := "/delivery/assignments/" + id

	cases := []struct {
		name   string
		token  string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing body", w.courier, base + "/pickup", map[string]string{}, http.StatusBadRequest, ErrCodeBadRequest},
		{"not six digits", w.courier, base + "/pickup", VerifyOTPRequest{OTP: "12ab"}, http.StatusBadRequest, ErrCodeBadRequest},
		{"wrong code", w.courier, base + "/pickup", VerifyOTPRequest{OTP: wrongCode(pickup)}, http.StatusUnprocessableEntity, ErrCodeOTPInvalid},
		{"delivery before pickup", w.courier, base + "/deliver", VerifyOTPRequest{OTP: delivery}, http.StatusUnprocessableEntity, ErrCodeOTPInvalid},
		{"other courier", w.otherCourier, base + "/pickup", VerifyOTPRequest{OTP: pickup}, http.StatusNotFound, ErrCodeNotFound},
		{"unknown assignment", w.courier, "/delivery/assignments/" + uuid.NewString() + "/pickup", VerifyOTPRequest{OTP: pickup}, http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := w.api.do(t, http.MethodPost, tc.path, tc.token, tc.body)
			if resp.Code != tc.status || errCode(t, resp) != tc.code {
				t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
			}
		})
	}

	resp := w.api.do(t, http.MethodPost, base+"/pickup", w.courier, VerifyOTPRequest{OTP: " " + pickup + " "})
	if resp.Code != http.StatusOK {
		t.Fatalf("pickup: status=%d body=%s", resp.Code, resp.Body.String())
	}
	var a struct {
		Status      string  `json:"status"`
		PickedUpAt  *string `json:"picked_up_at"`
		DeliveredAt *string `json:"delivered_at"`
	}
	decode(t, resp, &a)
	if a.Status != "picked_up" || a.PickedUpAt == nil || a.DeliveredAt != nil {
		t.Fatalf("after pickup=%+v", a)
	}

	// Replaying the pickup code is rejected like any other bad code.
	if resp = w.api.do(t, http.MethodPost, base+"/pickup", w.courier, VerifyOTPRequest{OTP: pickup}); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("second pickup: status=%d", resp.Code)
	}

	resp = w.api.do(t, http.MethodPost, base+"/deliver", w.courier, VerifyOTPRequest{OTP: delivery})
	if resp.Code != http.StatusOK {
		t.Fatalf("deliver: status=%d body=%s", resp.Code, resp.Body.String())
	}
	decode(t, resp, &a)
	if a.Status != "delivered" || a.DeliveredAt == nil {
		t.Fatalf("after deliver=%+v", a)
	}

	// The request moved with the assignment.
	var rv RequestViewsResponse
	decode(t, w.api.do(t, http.MethodGet, "/receiver/requests", w.receiver, nil), &rv)
	if rv.Requests[0].Request.Status != "delivered" {
		t.Fatalf("request status=%q", rv.Requests[0].Request.Status)
	}

	// And the provider can now close the listing.
	if resp = w.api.do(t, http.MethodPost, "/provider/listings/"+w.listingID+"/complete", w.provider, nil); resp.Code != http.StatusOK {
		t.Fatalf("complete: status=%d", resp.Code)
	}
}

func TestAssignments_ListAndDetail(t *testing.T) {
	w := newDeliveryWorld(t)
	id := w.accept(t)
	pickup, _ := w.otps(t)

	var list AssignmentsResponse
	decode(t, w.api.do(t, http.MethodGet, "/delivery/assignments", w.courier, nil), &list)
	if len(list.Assignments) != 1 || list.Assignments[0].ID != id {
		t.Fatalf("assignments=%+v", list.Assignments)
	}
	decode(t, w.api.do(t, http.MethodGet, "/delivery/assignments", w.otherCourier, nil), &list)
	if len(list.Assignments) != 0 {
		t.Fatalf("other courier sees %d assignments", len(list.Assignments))
	}

	resp := w.api.do(t, http.MethodGet, "/delivery/assignments/"+id, w.courier, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("detail: status=%d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), pickup) {
		t.Fatalf("detail leaks the pickup code")
	}
	var d struct {
		Listing struct {
			ID string `json:"id"`
		} `json:"listing"`
		History []struct {
			ToStatus string `json:"to_status"`
		} `json:"history"`
	}
	decode(t, resp, &d)
	if d.Listing.ID != w.listingID || len(d.History) == 0 || d.History[0].ToStatus != "assigned" {
		t.Fatalf("detail=%+v", d)
	}

	if resp = w.api.do(t, http.MethodGet, "/delivery/assignments/"+id, w.otherCourier, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("foreign detail: status=%d", resp.Code)
	}
}

func TestDashboards(t *testing.T) {
	w := newDeliveryWorld(t)
	w.api.createListing(t, w.provider, "Buns", "Bread", "Galle")

	resp := w.api.do(t, http.MethodGet, "/delivery/dashboard", w.courier, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delivery dashboard: status=%d", resp.Code)
	}
	var dd struct {
		Assignments []any `json:"assignments"`
		Pending     []any `json:"pending_requests"`
	}
	decode(t, resp, &dd)
	if len(dd.Assignments) != 0 || len(dd.Pending) != 1 {
		t.Fatalf("delivery dashboard=%+v", dd)
	}

	w.accept(t)
	decode(t, w.api.do(t, http.MethodGet, "/delivery/dashboard", w.courier, nil), &dd)
	if len(dd.Assignments) != 1 || len(dd.Pending) != 0 {
		t.Fatalf("after accept=%+v", dd)
	}

	resp = w.api.do(t, http.MethodGet, "/receiver/dashboard", w.receiver, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("receiver dashboard: status=%d", resp.Code)
	}
	var rd struct {
		Requests []struct {
			DeliveryOTP string `json:"delivery_otp"`
		} `json:"requests"`
		Recent []struct {
			Title string `json:"title"`
		} `json:"recent_listings"`
	}
	decode(t, resp, &rd)
	if len(rd.Requests) != 1 || rd.Requests[0].DeliveryOTP == "" {
		t.Fatalf("receiver requests=%+v", rd.Requests)
	}
	if len(rd.Recent) != 1 || rd.Recent[0].Title != "Buns" {
		t.Fatalf("recent=%+v", rd.Recent)
	}

	if resp = w.api.do(t, http.MethodGet, "/delivery/dashboard", "", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status=%d", resp.Code)
	}
}
