package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/metinatakli/cinema-booking-engine/api"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
)

func (app *Application) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showKey := domain.ShowKey(chi.URLParam(r, "showKey"))
	if _, _, _, err := domain.ParseShowKey(showKey); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input api.CreateBookingRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	party := domain.PartyComposition{Full: input.Party.Full, Student: input.Party.Student}
	if party.Size() < 1 || party.Size() > 10 {
		app.badRequestResponse(w, r, fmt.Errorf("party size must be between 1 and 10"))
		return
	}

	owner, err := app.resolveOwner(r, input.Guest)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.rejectSecondActiveBooking(r); err != nil {
		logger.Warn("booking creation rejected: session already has an active booking")
		app.badRequestResponse(w, r, err)
		return
	}

	booking, err := app.bookings.CreateBooking(r.Context(), showKey, party, owner)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponseWithErr(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	app.setActiveBooking(r, booking.ID)
	app.metrics.add(r.Context(), app.metrics.bookingsCreated)

	resp := api.BookingResponse{
		Booking: app.toApiBooking(booking),
	}

	err = app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := app.bookingFromRequest(w, r)
	if !ok {
		return
	}

	booking, err := app.bookings.GetBooking(r.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	resp := api.BookingResponse{
		Booking: app.toApiBooking(booking),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := app.bookingFromRequest(w, r)
	if !ok {
		return
	}

	// Session-end beacons are best effort: a booking mid-payment is left
	// for the fallback timer rather than erroring at a client that already
	// navigated away.
	if r.URL.Query().Get("trigger") == "session_end" {
		if err := app.watcher.SessionEnded(r.Context(), bookingID); err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}

		app.clearActiveBooking(r)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	err := app.bookings.Cancel(r.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrInvalidTransition):
			app.editConflictResponseWithErr(w, r, fmt.Errorf("booking cannot be cancelled while its payment is in progress"))
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	app.watcher.Untrack(bookingID)
	app.clearActiveBooking(r)

	w.WriteHeader(http.StatusNoContent)
}

// bookingFromRequest parses the booking ID from the URL and enforces that
// the current session owns it. Foreign bookings read as not found, so the
// endpoint leaks no existence information.
func (app *Application) bookingFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingId"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid booking ID"))
		return uuid.Nil, false
	}

	if !app.sessionOwnsBooking(r, bookingID) {
		app.notFoundResponse(w, r)
		return uuid.Nil, false
	}

	return bookingID, true
}

func (app *Application) resolveOwner(r *http.Request, guest *api.GuestContact) (domain.OwnerRef, error) {
	if userId := app.sessionUserId(r); userId != 0 {
		return domain.UserOwner(userId), nil
	}

	if guest == nil {
		return domain.OwnerRef{}, fmt.Errorf("guest contact details are required when not logged in")
	}

	return domain.GuestOwner(domain.GuestContact{
		FullName:    guest.FullName,
		Email:       guest.Email,
		PhoneNumber: guest.PhoneNumber,
	}), nil
}

// rejectSecondActiveBooking keeps checkouts one-at-a-time per session. A
// terminal leftover booking is cleaned out of the session instead.
func (app *Application) rejectSecondActiveBooking(r *http.Request) error {
	active := app.sessionManager.GetString(r.Context(), SessionKeyActiveBooking.String())
	if active == "" {
		return nil
	}

	activeID, err := uuid.Parse(active)
	if err != nil {
		app.clearActiveBooking(r)
		return nil
	}

	booking, err := app.bookings.GetBooking(r.Context(), activeID)
	if err != nil || booking.Status.Terminal() {
		app.clearActiveBooking(r)
		return nil
	}

	return fmt.Errorf("cannot create a new booking while another one is in progress")
}

func (app *Application) toApiBooking(booking *domain.Booking) api.Booking {
	out := api.Booking{
		Id:         booking.ID.String(),
		ShowKey:    string(booking.ShowKey),
		Status:     string(booking.Status),
		Seats:      booking.Seats,
		Party:      api.Party{Full: booking.Party.Full, Student: booking.Party.Student},
		TotalPrice: booking.TotalPrice.StringFixed(2),
		CreatedAt:  booking.CreatedAt,
	}

	if booking.LockAcquiredAt != nil && !booking.Status.Terminal() {
		remaining := app.bookings.LockTTL() - time.Since(*booking.LockAcquiredAt)
		if remaining > 0 {
			out.LockExpiresInSecs = int(remaining.Seconds())
		}
	}

	return out
}
