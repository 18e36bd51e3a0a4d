package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/metinatakli/cinema-booking-engine/api"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
)

const feedHeartbeatInterval = 25 * time.Second

func (app *Application) LockSeatsHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	bookingID, ok := app.bookingFromRequest(w, r)
	if !ok {
		return
	}

	var input api.LockSeatsRequest

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

	app.metrics.add(r.Context(), app.metrics.lockAttempts)

	result, err := app.bookings.LockSeats(r.Context(), bookingID, input.SeatIds)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrPartySizeMismatch):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, domain.ErrStaleLockExpired):
			app.goneResponse(w, r, domain.ErrStaleLockExpired.Error())
		case errors.Is(err, domain.ErrInvalidTransition):
			app.editConflictResponseWithErr(w, r, err)
		case errors.Is(err, domain.ErrVerificationFailed):
			logger.Warn("seat lock verification failed", "booking_id", bookingID)
			app.editConflictResponseWithErr(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	if !result.OK {
		logger.Warn("seat lock conflict", "booking_id", bookingID, "conflicts", result.Conflicts)
		app.metrics.add(r.Context(), app.metrics.lockConflicts)

		resp := api.LockSeatsResponse{
			Locked:    false,
			Conflicts: result.Conflicts,
		}

		err = app.writeJSON(w, http.StatusConflict, resp, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	app.watcher.Track(bookingID)

	booking, err := app.bookings.GetBooking(r.Context(), bookingID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	apiBooking := app.toApiBooking(booking)

	resp := api.LockSeatsResponse{
		Locked:  true,
		Booking: &apiBooking,
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetSeatMapHandler(w http.ResponseWriter, r *http.Request) {
	showKey := domain.ShowKey(chi.URLParam(r, "showKey"))
	if _, _, _, err := domain.ParseShowKey(showKey); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	seatMap, err := app.bookings.SeatMapSnapshot(r.Context(), showKey)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	resp := app.toApiSeatMap(r, seatMap)

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// SeatMapFeedHandler streams seat map snapshots over Server-Sent Events.
// The client gets the current state immediately and a fresh snapshot every
// time any booking changes the show's occupancy.
func (app *Application) SeatMapFeedHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showKey := domain.ShowKey(chi.URLParam(r, "showKey"))
	if _, _, _, err := domain.ParseShowKey(showKey); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		app.serverErrorResponse(w, r, fmt.Errorf("streaming unsupported by the connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	changes := make(chan struct{}, 1)

	go func() {
		err := app.feed.Subscribe(r.Context(), func(ctx context.Context, changed domain.ShowKey) {
			if changed != showKey {
				return
			}

			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("seat map feed subscription ended", "error", err, "show_key", showKey)
		}
	}()

	if err := app.writeSeatMapEvent(w, r, showKey); err != nil {
		logger.Error("failed to write seat map event", "error", err)
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(feedHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-changes:
			if err := app.writeSeatMapEvent(w, r, showKey); err != nil {
				logger.Error("failed to write seat map event", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (app *Application) writeSeatMapEvent(w http.ResponseWriter, r *http.Request, showKey domain.ShowKey) error {
	seatMap, err := app.bookings.SeatMapSnapshot(r.Context(), showKey)
	if err != nil {
		return err
	}

	resp := app.toApiSeatMap(r, seatMap)

	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: seatmap\ndata: %s\n\n", payload)

	return err
}

func (app *Application) toApiSeatMap(r *http.Request, seatMap *domain.SeatMap) api.SeatMapResponse {
	active := app.sessionManager.GetString(r.Context(), SessionKeyActiveBooking.String())

	seats := make([]api.SeatView, 0, len(seatMap.Seats))

	for id, seat := range seatMap.Seats {
		view := api.SeatView{
			Id:     id,
			Status: string(seat.Status),
		}

		if seat.BookingID != nil && seat.BookingID.String() == active {
			view.Mine = true
		}

		seats = append(seats, view)
	}

	sort.Slice(seats, func(i, j int) bool { return seats[i].Id < seats[j].Id })

	return api.SeatMapResponse{
		ShowKey: string(seatMap.ShowKey),
		Version: seatMap.Version,
		Seats:   seats,
	}
}
