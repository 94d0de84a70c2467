package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"napdiary/internal/calendar"
	"napdiary/internal/models"
	"napdiary/internal/validation"
)

// NapHandler serves the diary pages of the current child
type NapHandler struct {
	napService NapService
	mw         *Middleware
	templates  *template.Template
}

// NewNapHandler creates a new nap handler
func NewNapHandler(napService NapService, mw *Middleware, templates *template.Template) *NapHandler {
	return &NapHandler{
		napService: napService,
		mw:         mw,
		templates:  templates,
	}
}

// Today shows the day view for the current date
func (h *NapHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.renderDay(w, r, h.napService.Today())
}

// Day shows the day view for /day/{date}
func (h *NapHandler) Day(w http.ResponseWriter, r *http.Request) {
	date, err := models.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	h.renderDay(w, r, date)
}

func (h *NapHandler) renderDay(w http.ResponseWriter, r *http.Request, date models.Date) {
	child := GetChildFromContext(r.Context())

	detail, err := h.napService.DayDetail(r.Context(), child.ID, date)
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to load day", err)
		return
	}

	today := h.napService.Today()
	data := DayViewData{
		Page:    h.mw.newPage(r, date.String()),
		Detail:  detail,
		Today:   today,
		Prev:    date.AddDays(-1),
		Next:    date.AddDays(1),
		IsToday: date == today,
	}
	render(w, r, h.templates, "day.tmpl", http.StatusOK, data)
}

// ShowAddNap renders the add-nap form, prefilled with ?date= or today
func (h *NapHandler) ShowAddNap(w http.ResponseWriter, r *http.Request) {
	form := validation.NapInput{
		Date:    h.formDate(r),
		Problem: models.ProblemOK.Code(),
		Place:   models.PlaceCrib.Code(),
	}
	h.renderAddNap(w, r, http.StatusOK, form, "")
}

func (h *NapHandler) renderAddNap(w http.ResponseWriter, r *http.Request, status int, form validation.NapInput, message string) {
	data := NapFormViewData{
		Page:     h.mw.newPage(r, "Add nap"),
		Form:     form,
		Problems: models.Problems,
		Places:   models.Places,
	}
	data.Error = message
	render(w, r, h.templates, "add_nap.tmpl", status, data)
}

// AddNap records a nap and shows its day
func (h *NapHandler) AddNap(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	form := validation.NapInput{
		Date:    r.FormValue("date"),
		Start:   r.FormValue("start"),
		End:     r.FormValue("end"),
		Problem: r.FormValue("problem"),
		Place:   r.FormValue("place"),
		Notes:   r.FormValue("notes"),
	}

	nap, err := h.napService.AddNap(r.Context(), GetChildFromContext(r.Context()).ID, form)
	if err != nil {
		var verr validation.ValidationError
		if errors.As(err, &verr) {
			h.renderAddNap(w, r, http.StatusBadRequest, form, verr.Error())
			return
		}
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to add nap", err)
		return
	}

	http.Redirect(w, r, "/day/"+nap.Date.String(), http.StatusSeeOther)
}

// ShowNightNap renders the night form, prefilled with ?date= or today
func (h *NapHandler) ShowNightNap(w http.ResponseWriter, r *http.Request) {
	h.renderNightNap(w, r, http.StatusOK, validation.NightNapInput{Date: h.formDate(r)}, "")
}

func (h *NapHandler) renderNightNap(w http.ResponseWriter, r *http.Request, status int, form validation.NightNapInput, message string) {
	data := NightNapFormViewData{
		Page: h.mw.newPage(r, "Night"),
		Form: form,
	}
	data.Error = message
	render(w, r, h.templates, "night_nap.tmpl", status, data)
}

// SaveNightNap records or replaces the night for a date
func (h *NapHandler) SaveNightNap(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	form := validation.NightNapInput{
		Date:       r.FormValue("date"),
		WakeUp:     r.FormValue("wake_up"),
		FallAsleep: r.FormValue("fall_asleep"),
	}

	night, err := h.napService.SaveNightNap(r.Context(), GetChildFromContext(r.Context()).ID, form)
	if err != nil {
		var verr validation.ValidationError
		if errors.As(err, &verr) {
			h.renderNightNap(w, r, http.StatusBadRequest, form, verr.Error())
			return
		}
		respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to save night", err)
		return
	}

	http.Redirect(w, r, "/day/"+night.Date.String(), http.StatusSeeOther)
}

// Calendar renders the month grid for ?year=&month=, defaulting to the current month
func (h *NapHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	year, month, ok := h.monthParams(w, r)
	if !ok {
		return
	}

	grid, err := h.napService.MonthCalendar(r.Context(), GetChildFromContext(r.Context()).ID, year, month)
	if err != nil {
		h.monthError(w, r, "Failed to build calendar", err)
		return
	}

	prevYear, prevMonth := grid.Prev()
	nextYear, nextMonth := grid.Next()
	data := CalendarViewData{
		Page:  h.mw.newPage(r, month.String()+" "+strconv.Itoa(year)),
		Grid:  grid,
		Today: h.napService.Today(),
		Prev:  MonthRef{Year: prevYear, Month: prevMonth},
		Next:  MonthRef{Year: nextYear, Month: nextMonth},
	}
	render(w, r, h.templates, "calendar.tmpl", http.StatusOK, data)
}

// Statistics renders per-day counts and minutes for ?year=&month=
func (h *NapHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	year, month, ok := h.monthParams(w, r)
	if !ok {
		return
	}

	stats, err := h.napService.MonthStatistics(r.Context(), GetChildFromContext(r.Context()).ID, year, month)
	if err != nil {
		h.monthError(w, r, "Failed to build statistics", err)
		return
	}

	first := models.NewDate(year, month, 1)
	prev := first.AddDays(-1)
	next := first.AddDays(32)
	data := StatisticsViewData{
		Page:  h.mw.newPage(r, "Statistics"),
		Stats: stats,
		Prev:  MonthRef{Year: prev.Year, Month: prev.Month},
		Next:  MonthRef{Year: next.Year, Month: next.Month},
	}
	render(w, r, h.templates, "statistics.tmpl", http.StatusOK, data)
}

// monthParams reads ?year= and ?month=, each defaulting to today's
func (h *NapHandler) monthParams(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	today := h.napService.Today()
	year, month := today.Year, today.Month

	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 9999 {
			http.Error(w, "Invalid year", http.StatusBadRequest)
			return 0, 0, false
		}
		year = parsed
	}
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid month", http.StatusBadRequest)
			return 0, 0, false
		}
		month = time.Month(parsed)
	}
	return year, month, true
}

func (h *NapHandler) monthError(w http.ResponseWriter, r *http.Request, logMsg string, err error) {
	if errors.Is(err, calendar.ErrInvalidMonth) {
		http.Error(w, "Invalid month", http.StatusBadRequest)
		return
	}
	respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, logMsg, err)
}

func (h *NapHandler) formDate(r *http.Request) string {
	if v := r.URL.Query().Get("date"); v != "" {
		if date, err := models.ParseDate(v); err == nil {
			return date.String()
		}
	}
	return h.napService.Today().String()
}
