package app

import (
	"errors"
	"net/http"

	"github.com/metinatakli/cinema-booking-engine/api"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
)

func (app *Application) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	bookingID, ok := app.bookingFromRequest(w, r)
	if !ok {
		return
	}

	var input api.ConfirmPaymentRequest

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

	booking, err := app.bookings.ConfirmPayment(r.Context(), bookingID, input.PaymentMethodId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrPaymentDeclined):
			logger.Warn("payment declined", "booking_id", bookingID)
			app.metrics.add(r.Context(), app.metrics.paymentsDeclined)
			app.watcher.Untrack(bookingID)
			app.clearActiveBooking(r)
			app.paymentRequiredResponse(w, r, err.Error())
		case errors.Is(err, domain.ErrStaleLockExpired):
			logger.Warn("payment confirmation on expired locks", "booking_id", bookingID)
			app.watcher.Untrack(bookingID)
			app.clearActiveBooking(r)
			app.goneResponse(w, r, domain.ErrStaleLockExpired.Error())
		case errors.Is(err, domain.ErrInvalidTransition):
			app.editConflictResponseWithErr(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	app.watcher.Untrack(bookingID)
	app.clearActiveBooking(r)
	app.metrics.add(r.Context(), app.metrics.bookingsCompleted)

	resp := api.BookingResponse{
		Booking: app.toApiBooking(booking),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
