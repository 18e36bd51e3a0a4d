package integration_test

import (
	"net/http"
	"testing"

	"github.com/metinatakli/cinema-booking-engine/api"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BookingFlowSuite struct {
	BaseSuite
}

func TestBookingFlowSuite(t *testing.T) {
	suite.Run(t, new(BookingFlowSuite))
}

func (s *BookingFlowSuite) TestGuestCheckoutFlow() {
	browser := newSession(s.T(), s.app)

	res := browser.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 1, Student: 1}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)

	booking := decodeBooking(s.T(), res)
	s.Equal("pending", booking.Status)
	s.Equal(mainShowKey, booking.ShowKey)
	// One full ticket at 10.00 plus one student ticket at half price.
	s.Equal("15.00", booking.TotalPrice)

	res = browser.do(http.MethodPost, "/bookings/"+booking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"A1", "A2"}})
	require.Equal(s.T(), http.StatusOK, res.StatusCode)

	lockResult := decodeLockResult(s.T(), res)
	s.True(lockResult.Locked)
	s.Require().NotNil(lockResult.Booking)
	s.Equal("locked", lockResult.Booking.Status)
	s.ElementsMatch([]string{"A1", "A2"}, lockResult.Booking.Seats)
	s.Greater(lockResult.Booking.LockExpiresInSecs, 0)

	res = browser.do(http.MethodGet, "/shows/"+mainShowKey+"/seatmap", nil)
	require.Equal(s.T(), http.StatusOK, res.StatusCode)

	statuses := seatStatuses(decodeSeatMap(s.T(), res))
	s.Equal("locked", statuses["A1"])
	s.Equal("locked", statuses["A2"])
	s.Equal("available", statuses["A3"])

	res = browser.do(http.MethodPost, "/bookings/"+booking.Id+"/payment", api.ConfirmPaymentRequest{PaymentMethodId: "pm_card_visa"})
	require.Equal(s.T(), http.StatusOK, res.StatusCode)

	completed := decodeBooking(s.T(), res)
	s.Equal("completed", completed.Status)
	s.Zero(completed.LockExpiresInSecs)

	res = browser.do(http.MethodGet, "/shows/"+mainShowKey+"/seatmap", nil)
	require.Equal(s.T(), http.StatusOK, res.StatusCode)

	statuses = seatStatuses(decodeSeatMap(s.T(), res))
	s.Equal("booked", statuses["A1"])
	s.Equal("booked", statuses["A2"])
}

func (s *BookingFlowSuite) TestDeclinedPaymentReleasesSeats() {
	browser := newSession(s.T(), s.app)

	res := browser.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 1}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	booking := decodeBooking(s.T(), res)

	res = browser.do(http.MethodPost, "/bookings/"+booking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"B1"}})
	require.Equal(s.T(), http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = browser.do(http.MethodPost, "/bookings/"+booking.Id+"/payment", api.ConfirmPaymentRequest{PaymentMethodId: declinedPaymentMethod})
	s.Equal(http.StatusPaymentRequired, res.StatusCode)
	res.Body.Close()

	res = browser.do(http.MethodGet, "/shows/"+mainShowKey+"/seatmap", nil)
	require.Equal(s.T(), http.StatusOK, res.StatusCode)
	s.Equal("available", seatStatuses(decodeSeatMap(s.T(), res))["B1"])

	// The session is free to start over after the decline.
	res = browser.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 1}))
	s.Equal(http.StatusCreated, res.StatusCode)
	res.Body.Close()
}

func (s *BookingFlowSuite) TestCancelAfterLockReleasesSeats() {
	browser := newSession(s.T(), s.app)

	res := browser.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 2}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	booking := decodeBooking(s.T(), res)

	res = browser.do(http.MethodPost, "/bookings/"+booking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"C3", "C4"}})
	require.Equal(s.T(), http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = browser.do(http.MethodDelete, "/bookings/"+booking.Id, nil)
	s.Equal(http.StatusNoContent, res.StatusCode)
	res.Body.Close()

	res = browser.do(http.MethodGet, "/shows/"+mainShowKey+"/seatmap", nil)
	require.Equal(s.T(), http.StatusOK, res.StatusCode)

	statuses := seatStatuses(decodeSeatMap(s.T(), res))
	s.Equal("available", statuses["C3"])
	s.Equal("available", statuses["C4"])
}

func (s *BookingFlowSuite) TestSeatContentionBetweenSessions() {
	alice := newSession(s.T(), s.app)
	bob := newSession(s.T(), s.app)

	res := alice.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 2}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	aliceBooking := decodeBooking(s.T(), res)

	res = bob.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 2}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	bobBooking := decodeBooking(s.T(), res)

	res = alice.do(http.MethodPost, "/bookings/"+aliceBooking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"A1", "A2"}})
	require.Equal(s.T(), http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = bob.do(http.MethodPost, "/bookings/"+bobBooking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"A2", "A3"}})
	s.Equal(http.StatusConflict, res.StatusCode)

	lockResult := decodeLockResult(s.T(), res)
	s.False(lockResult.Locked)
	s.Equal([]string{"A2"}, lockResult.Conflicts)

	// Neither seat of the failed pair may be held: all-or-nothing.
	res = bob.do(http.MethodGet, "/shows/"+mainShowKey+"/seatmap", nil)
	require.Equal(s.T(), http.StatusOK, res.StatusCode)
	s.Equal("available", seatStatuses(decodeSeatMap(s.T(), res))["A3"])

	res = bob.do(http.MethodPost, "/bookings/"+bobBooking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"A3", "A4"}})
	s.Equal(http.StatusOK, res.StatusCode)
	res.Body.Close()
}

func (s *BookingFlowSuite) TestBookedSeatsStayTaken() {
	alice := newSession(s.T(), s.app)
	bob := newSession(s.T(), s.app)

	res := alice.do(http.MethodPost, "/shows/"+smallShowKey+"/bookings", guestBookingRequest(api.Party{Full: 1}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	aliceBooking := decodeBooking(s.T(), res)

	res = alice.do(http.MethodPost, "/bookings/"+aliceBooking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"A1"}})
	require.Equal(s.T(), http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = alice.do(http.MethodPost, "/bookings/"+aliceBooking.Id+"/payment", api.ConfirmPaymentRequest{PaymentMethodId: "pm_card_visa"})
	require.Equal(s.T(), http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = bob.do(http.MethodPost, "/shows/"+smallShowKey+"/bookings", guestBookingRequest(api.Party{Full: 1}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	bobBooking := decodeBooking(s.T(), res)

	res = bob.do(http.MethodPost, "/bookings/"+bobBooking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"A1"}})
	s.Equal(http.StatusConflict, res.StatusCode)
	s.Equal([]string{"A1"}, decodeLockResult(s.T(), res).Conflicts)
}

func (s *BookingFlowSuite) TestSecondActiveBookingRejected() {
	browser := newSession(s.T(), s.app)

	res := browser.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 1}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	res.Body.Close()

	res = browser.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 1}))
	s.Equal(http.StatusBadRequest, res.StatusCode)
	res.Body.Close()
}

func (s *BookingFlowSuite) TestForeignBookingIsHidden() {
	alice := newSession(s.T(), s.app)
	bob := newSession(s.T(), s.app)

	res := alice.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 1}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	booking := decodeBooking(s.T(), res)

	res = bob.do(http.MethodGet, "/bookings/"+booking.Id, nil)
	s.Equal(http.StatusNotFound, res.StatusCode)
	res.Body.Close()

	res = bob.do(http.MethodPost, "/bookings/"+booking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"D1"}})
	s.Equal(http.StatusNotFound, res.StatusCode)
	res.Body.Close()
}

func (s *BookingFlowSuite) TestSeatCountMustMatchParty() {
	browser := newSession(s.T(), s.app)

	res := browser.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 2}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	booking := decodeBooking(s.T(), res)

	res = browser.do(http.MethodPost, "/bookings/"+booking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"A1"}})
	s.Equal(http.StatusBadRequest, res.StatusCode)
	res.Body.Close()
}

func (s *BookingFlowSuite) TestReselectionReplacesHeldSeats() {
	browser := newSession(s.T(), s.app)

	res := browser.do(http.MethodPost, "/shows/"+mainShowKey+"/bookings", guestBookingRequest(api.Party{Full: 1}))
	require.Equal(s.T(), http.StatusCreated, res.StatusCode)
	booking := decodeBooking(s.T(), res)

	res = browser.do(http.MethodPost, "/bookings/"+booking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"D5"}})
	require.Equal(s.T(), http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = browser.do(http.MethodPost, "/bookings/"+booking.Id+"/seats", api.LockSeatsRequest{SeatIds: []string{"D4"}})
	require.Equal(s.T(), http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = browser.do(http.MethodGet, "/shows/"+mainShowKey+"/seatmap", nil)
	require.Equal(s.T(), http.StatusOK, res.StatusCode)

	statuses := seatStatuses(decodeSeatMap(s.T(), res))
	s.Equal("available", statuses["D5"])
	s.Equal("locked", statuses["D4"])
}
