package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5"
	"github.com/metinatakli/cinema-booking-engine/api"
	"github.com/stretchr/testify/require"
)

func prepareRequest(method, path string, body io.Reader, headers map[string]string, cookies []*http.Cookie) (*http.Request, error) {
	req := httptest.NewRequest(method, path, body)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	return req, nil
}

func compareResponse(t *testing.T, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	// ignore indeterministic fields while comparing
	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		return k == "timestamp" || k == "request_id" || k == "created_at" || k == "id"
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

// session drives a sequence of requests with cookie continuity, standing in
// for one browser.
type session struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func newSession(t *testing.T, testApp *TestApp) *session {
	return &session{
		t:       t,
		handler: testApp.App.Routes(),
	}
}

func (s *session) do(method, path string, body any) *http.Response {
	s.t.Helper()

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := prepareRequest(method, path, reader, nil, s.cookies)
	require.NoError(s.t, err)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	res := rec.Result()

	if fresh := res.Cookies(); len(fresh) > 0 {
		s.cookies = fresh
	}

	return res
}

func decodeBooking(t *testing.T, res *http.Response) api.Booking {
	t.Helper()
	defer res.Body.Close()

	var resp api.BookingResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))

	return resp.Booking
}

func decodeLockResult(t *testing.T, res *http.Response) api.LockSeatsResponse {
	t.Helper()
	defer res.Body.Close()

	var resp api.LockSeatsResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))

	return resp
}

func decodeSeatMap(t *testing.T, res *http.Response) api.SeatMapResponse {
	t.Helper()
	defer res.Body.Close()

	var resp api.SeatMapResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))

	return resp
}

func seatStatuses(seatMap api.SeatMapResponse) map[string]string {
	statuses := make(map[string]string, len(seatMap.Seats))
	for _, seat := range seatMap.Seats {
		statuses[seat.Id] = seat.Status
	}

	return statuses
}

// resetBookingState clears all checkout state between tests while keeping
// the seeded catalog.
func (s *BaseSuite) resetBookingState() {
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, s.dbContainer.ConnectionString)
	require.NoError(s.T(), err)
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, "TRUNCATE bookings, seat_maps")
	require.NoError(s.T(), err)
}

func guestBookingRequest(party api.Party) api.CreateBookingRequest {
	return api.CreateBookingRequest{
		Party: party,
		Guest: &api.GuestContact{
			FullName:    "Claire Beauchamp",
			Email:       "claire@example.com",
			PhoneNumber: "+44 20 7946 0958",
		},
	}
}
