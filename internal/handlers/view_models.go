package handlers

import (
	"time"

	"napdiary/internal/calendar"
	"napdiary/internal/models"
	"napdiary/internal/validation"
)

// Page carries what base.tmpl needs on every page
type Page struct {
	Title     string
	User      *models.User
	Child     *models.Child
	CSRFToken string
	Error     string
}

type LoginViewData struct {
	Page
	OAuthProviders []OAuthProviderView
	Email          string
}

type RegisterViewData struct {
	Page
	OAuthProviders []OAuthProviderView
	Email          string
}

type DayViewData struct {
	Page
	Detail  calendar.DayDetail
	Today   models.Date
	Prev    models.Date
	Next    models.Date
	IsToday bool
}

type NapFormViewData struct {
	Page
	Form     validation.NapInput
	Problems []models.Problem
	Places   []models.Place
}

type NightNapFormViewData struct {
	Page
	Form validation.NightNapInput
}

// MonthRef links to another month
type MonthRef struct {
	Year  int
	Month time.Month
}

type CalendarViewData struct {
	Page
	Grid  calendar.MonthGrid
	Today models.Date
	Prev  MonthRef
	Next  MonthRef
}

type StatisticsViewData struct {
	Page
	Stats calendar.MonthStatistics
	Prev  MonthRef
	Next  MonthRef
}

type ChildrenViewData struct {
	Page
	Children []models.ChildWithGuardians
	Form     validation.ChildInput
}

type AdminUsersViewData struct {
	Page
	Users []models.User
}
