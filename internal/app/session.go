package app

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type sessionKey string

const (
	SessionKeyUserId        = sessionKey("userID")
	SessionKeyGuest         = sessionKey("guest")
	SessionKeyActiveBooking = sessionKey("activeBookingID")
)

type contextKey string

const loggerContextKey = contextKey("logger")

func (s sessionKey) String() string {
	return string(s)
}

func (app *Application) contextGetLogger(r *http.Request) *slog.Logger {
	logger, ok := r.Context().Value(loggerContextKey).(*slog.Logger)
	if !ok {
		return app.logger
	}

	return logger
}

// sessionOwner derives the booking owner from the current session: the
// logged-in user if there is one, otherwise nothing. Guest ownership comes
// from the request body instead.
func (app *Application) sessionUserId(r *http.Request) int {
	return app.sessionManager.GetInt(r.Context(), SessionKeyUserId.String())
}

// sessionOwnsBooking reports whether the current session created the
// booking. Bookings are session-scoped: no session may drive another
// session's checkout.
func (app *Application) sessionOwnsBooking(r *http.Request, bookingID uuid.UUID) bool {
	active := app.sessionManager.GetString(r.Context(), SessionKeyActiveBooking.String())

	return active == bookingID.String()
}

func (app *Application) setActiveBooking(r *http.Request, bookingID uuid.UUID) {
	app.sessionManager.Put(r.Context(), SessionKeyActiveBooking.String(), bookingID.String())
}

func (app *Application) clearActiveBooking(r *http.Request) {
	app.sessionManager.Remove(r.Context(), SessionKeyActiveBooking.String())
}
