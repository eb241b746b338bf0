/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. All field names
  are snake_case.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Operation result wrappers

MONEY AND HOURS:
  decimal.Decimal fields are written as JSON numbers and accepted as numbers
  or numeric strings.

VALIDATION:
  Shape checks (required, enums, formats) live in struct tags and run in
  validate.go. Domain rules run again in the scheduling service, which
  stays the authority.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Tag validation
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
	"github.com/tutordesk/lesson-engine/scheduling"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// STUDENTS
// =============================================================================

type StudentDTO struct {
	ID                string          `json:"id"`
	FullName          string          `json:"full_name"`
	Subject           string          `json:"subject"`
	Phone             string          `json:"phone"`
	Email             string          `json:"email"`
	HourlyRateDefault decimal.Decimal `json:"hourly_rate_default"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

type BalanceDTO struct {
	TotalFee  decimal.Decimal `json:"total_fee"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

type StudentSummaryDTO struct {
	StudentDTO
	Balance BalanceDTO `json:"balance"`
}

type StudentDetailDTO struct {
	Student StudentDTO  `json:"student"`
	Lessons []LessonDTO `json:"lessons"`
	Balance BalanceDTO  `json:"balance"`
}

type CreateStudentRequest struct {
	FullName          string          `json:"full_name" validate:"required,min=2,max=120"`
	Subject           string          `json:"subject" validate:"max=120"`
	Phone             string          `json:"phone" validate:"max=40"`
	Email             string          `json:"email" validate:"omitempty,email"`
	HourlyRateDefault decimal.Decimal `json:"hourly_rate_default" validate:"gte=0"`
	Status            string          `json:"status" validate:"omitempty,oneof=ACTIVE PASSIVE"`
}

func toStudentDTO(s schedule.Student) StudentDTO {
	return StudentDTO{
		ID:                string(s.ID),
		FullName:          s.FullName,
		Subject:           s.Subject,
		Phone:             s.Phone,
		Email:             s.Email,
		HourlyRateDefault: s.HourlyRateDefault,
		Status:            string(s.Status),
		CreatedAt:         s.CreatedAt,
	}
}

func toBalanceDTO(b finance.StudentBalance) BalanceDTO {
	return BalanceDTO{TotalFee: b.TotalFee, TotalPaid: b.TotalPaid, Remaining: b.Remaining}
}

// =============================================================================
// LESSONS
// =============================================================================

type LessonDTO struct {
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	RecurrenceID  *string         `json:"recurrence_id"`
	StartDatetime time.Time       `json:"start_datetime"`
	EndDatetime   time.Time       `json:"end_datetime"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	Status        string          `json:"status"`
	NoShowFeeRule string          `json:"no_show_fee_rule"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	FeeTotal      decimal.Decimal `json:"fee_total"`
	PaymentStatus string          `json:"payment_status"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Note          string          `json:"note"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CreateLessonRequest struct {
	StudentID     string           `json:"student_id" validate:"required"`
	StartDatetime time.Time        `json:"start_datetime" validate:"required"`
	EndDatetime   time.Time        `json:"end_datetime" validate:"required,gtfield=StartDatetime"`
	DurationHours *decimal.Decimal `json:"duration_hours" validate:"omitempty,gt=0,lte=24"`
	Status        string           `json:"status" validate:"omitempty,oneof=PLANNED DONE NO_SHOW CANCELLED"`
	NoShowFeeRule *string          `json:"no_show_fee_rule" validate:"omitempty,oneof=NONE HALF FULL"`
	HourlyRate    *decimal.Decimal `json:"hourly_rate" validate:"omitempty,gte=0"`
	PaymentStatus string           `json:"payment_status" validate:"omitempty,oneof=PAID UNPAID PARTIAL"`
	AmountPaid    *decimal.Decimal `json:"amount_paid" validate:"omitempty,gte=0"`
	Note          string           `json:"note" validate:"max=2000"`
}

func (r CreateLessonRequest) toInput() scheduling.LessonInput {
	in := scheduling.LessonInput{
		StudentID:     schedule.StudentID(r.StudentID),
		StartAt:       r.StartDatetime,
		EndAt:         r.EndDatetime,
		Status:        schedule.LessonStatus(r.Status),
		HourlyRate:    r.HourlyRate,
		PaymentStatus: schedule.PaymentStatus(r.PaymentStatus),
		Note:          r.Note,
	}
	if r.DurationHours != nil {
		in.DurationHours = *r.DurationHours
	}
	if r.NoShowFeeRule != nil {
		rule := schedule.NoShowRule(*r.NoShowFeeRule)
		in.NoShowRule = &rule
	}
	if r.AmountPaid != nil {
		in.AmountPaid = *r.AmountPaid
	}
	return in
}

// PatchDTO lists the lesson fields an edit may change. Absent fields are kept.
type PatchDTO struct {
	StudentID     *string          `json:"student_id" validate:"omitempty,min=1"`
	StartDatetime *time.Time       `json:"start_datetime"`
	EndDatetime   *time.Time       `json:"end_datetime"`
	DurationHours *decimal.Decimal `json:"duration_hours" validate:"omitempty,gt=0,lte=24"`
	Status        *string          `json:"status" validate:"omitempty,oneof=PLANNED DONE NO_SHOW CANCELLED"`
	NoShowFeeRule *string          `json:"no_show_fee_rule" validate:"omitempty,oneof=NONE HALF FULL"`
	HourlyRate    *decimal.Decimal `json:"hourly_rate" validate:"omitempty,gte=0"`
	PaymentStatus *string          `json:"payment_status" validate:"omitempty,oneof=PAID UNPAID PARTIAL"`
	AmountPaid    *decimal.Decimal `json:"amount_paid" validate:"omitempty,gte=0"`
	Note          *string          `json:"note" validate:"omitempty,max=2000"`
}

func (p PatchDTO) toPatch() scheduling.Patch {
	patch := scheduling.Patch{
		StartAt:       p.StartDatetime,
		EndAt:         p.EndDatetime,
		DurationHours: p.DurationHours,
		HourlyRate:    p.HourlyRate,
		AmountPaid:    p.AmountPaid,
		Note:          p.Note,
	}
	if p.StudentID != nil {
		id := schedule.StudentID(*p.StudentID)
		patch.StudentID = &id
	}
	if p.Status != nil {
		s := schedule.LessonStatus(*p.Status)
		patch.Status = &s
	}
	if p.NoShowFeeRule != nil {
		r := schedule.NoShowRule(*p.NoShowFeeRule)
		patch.NoShowRule = &r
	}
	if p.PaymentStatus != nil {
		s := schedule.PaymentStatus(*p.PaymentStatus)
		patch.PaymentStatus = &s
	}
	return patch
}

type ApplyScopeRequest struct {
	Scope string   `json:"scope" validate:"required,oneof=THIS THIS_AND_FUTURE ALL"`
	Patch PatchDTO `json:"patch"`
}

type ApplyScopeResponse struct {
	Scope        string   `json:"scope"`
	UpdatedCount int      `json:"updated_count"`
	Warnings     []string `json:"warnings"`
}

func toLessonDTO(l schedule.Lesson) LessonDTO {
	dto := LessonDTO{
		ID:            string(l.ID),
		StudentID:     string(l.StudentID),
		StartDatetime: l.StartAt,
		EndDatetime:   l.EndAt,
		DurationHours: l.DurationHours,
		Status:        string(l.Status),
		NoShowFeeRule: string(l.NoShowRule),
		HourlyRate:    l.HourlyRate,
		FeeTotal:      l.FeeTotal,
		PaymentStatus: string(l.PaymentStatus),
		AmountPaid:    l.AmountPaid,
		Note:          l.Note,
		CreatedAt:     l.CreatedAt,
	}
	if l.RecurrenceID != nil {
		id := string(*l.RecurrenceID)
		dto.RecurrenceID = &id
	}
	return dto
}

func toLessonDTOs(lessons []schedule.Lesson) []LessonDTO {
	dtos := make([]LessonDTO, len(lessons))
	for i, l := range lessons {
		dtos[i] = toLessonDTO(l)
	}
	return dtos
}

// =============================================================================
// RECURRENCES
// =============================================================================

type CreateWeeklyRequest struct {
	StudentID     string           `json:"student_id" validate:"required"`
	Weekday       *int             `json:"weekday" validate:"required,min=0,max=6"`
	Time          string           `json:"time" validate:"required,datetime=15:04"`
	DurationHours decimal.Decimal  `json:"duration_hours" validate:"gt=0,lte=24"`
	StartDate     string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       *string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Count         *int             `json:"count" validate:"omitempty,min=1"`
	IntervalWeeks int              `json:"interval_weeks" validate:"omitempty,min=1,max=52"`
	HourlyRate    *decimal.Decimal `json:"hourly_rate" validate:"omitempty,gte=0"`
	NoShowFeeRule *string          `json:"no_show_fee_rule" validate:"omitempty,oneof=NONE HALF FULL"`
	Note          string           `json:"note" validate:"max=2000"`
}

func (r CreateWeeklyRequest) toInput() (scheduling.WeeklyInput, error) {
	start, err := schedule.ParseDate(r.StartDate)
	if err != nil {
		return scheduling.WeeklyInput{}, schedule.Invalid("start_date", "must be YYYY-MM-DD")
	}
	in := scheduling.WeeklyInput{
		StudentID:     schedule.StudentID(r.StudentID),
		Weekday:       time.Weekday(*r.Weekday),
		Time:          r.Time,
		DurationHours: r.DurationHours,
		StartDate:     start,
		Count:         r.Count,
		IntervalWeeks: r.IntervalWeeks,
		HourlyRate:    r.HourlyRate,
		Note:          r.Note,
	}
	if r.EndDate != nil {
		end, err := schedule.ParseDate(*r.EndDate)
		if err != nil {
			return scheduling.WeeklyInput{}, schedule.Invalid("end_date", "must be YYYY-MM-DD")
		}
		in.EndDate = &end
	}
	if r.NoShowFeeRule != nil {
		rule := schedule.NoShowRule(*r.NoShowFeeRule)
		in.NoShowRule = &rule
	}
	return in, nil
}

type CreateWeeklyResponse struct {
	RecurrenceID string `json:"recurrence_id"`
	CreatedCount int    `json:"created_count"`
}

type StopRequest struct {
	RecurrenceID string  `json:"recurrence_id" validate:"required"`
	StopMode     string  `json:"stop_mode" validate:"required,oneof=NEXT DATE"`
	StopDate     *string `json:"stop_date" validate:"omitempty,datetime=2006-01-02"`
}

func (r StopRequest) toInput() (scheduling.StopInput, error) {
	in := scheduling.StopInput{
		RecurrenceID: schedule.RecurrenceID(r.RecurrenceID),
		Mode:         scheduling.StopMode(r.StopMode),
	}
	if r.StopDate != nil {
		d, err := schedule.ParseDate(*r.StopDate)
		if err != nil {
			return scheduling.StopInput{}, schedule.Invalid("stop_date", "must be YYYY-MM-DD")
		}
		in.StopDate = &d
	}
	return in, nil
}

type StopResponse struct {
	CancelledCount        int       `json:"cancelled_count"`
	StopEffectiveDatetime time.Time `json:"stop_effective_datetime"`
	EndDate               string    `json:"end_date"`
	Message               string    `json:"message"`
}

type SeriesDTO struct {
	RecurrenceID  string          `json:"recurrence_id"`
	Frequency     string          `json:"frequency"`
	IntervalWeeks int             `json:"interval_weeks"`
	Weekdays      []int           `json:"weekdays"`
	StartDatetime time.Time       `json:"start_datetime"`
	EndDate       *string         `json:"end_date"`
	RepeatCount   *int            `json:"repeat_count"`
	Timezone      string          `json:"timezone"`
	IsActive      bool            `json:"is_active"`
	NextLessonAt  *time.Time      `json:"next_lesson_at"`
	FutureCount   int             `json:"future_count"`
	DurationHours decimal.Decimal `json:"duration_hours"`
}

func toSeriesDTO(s scheduling.SeriesSummary) SeriesDTO {
	rec := s.Recurrence
	dto := SeriesDTO{
		RecurrenceID:  string(rec.ID),
		Frequency:     string(rec.Frequency),
		IntervalWeeks: rec.IntervalWeeks,
		Weekdays:      make([]int, len(rec.Weekdays)),
		StartDatetime: rec.StartAt,
		RepeatCount:   rec.RepeatCount,
		Timezone:      rec.Timezone,
		IsActive:      s.IsActive,
		NextLessonAt:  s.NextLessonAt,
		FutureCount:   s.FutureCount,
		DurationHours: s.DurationHours,
	}
	for i, d := range rec.Weekdays {
		dto.Weekdays[i] = int(d)
	}
	if rec.EndDate != nil {
		end := rec.EndDate.String()
		dto.EndDate = &end
	}
	return dto
}

// =============================================================================
// REPORTS
// =============================================================================

type StudentStatDTO struct {
	StudentID   string          `json:"student_id"`
	StudentName string          `json:"student_name"`
	LessonCount int             `json:"lesson_count"`
	TotalHours  decimal.Decimal `json:"total_hours"`
}

type MonthlyReportDTO struct {
	TotalLessonHours decimal.Decimal  `json:"total_lesson_hours"`
	Collected        decimal.Decimal  `json:"collected"`
	Receivable       decimal.Decimal  `json:"receivable"`
	TopStudents      []StudentStatDTO `json:"top_students"`
}

func toMonthlyReportDTO(r finance.MonthlyReport) MonthlyReportDTO {
	dto := MonthlyReportDTO{
		TotalLessonHours: r.TotalLessonHours,
		Collected:        r.Collected,
		Receivable:       r.Receivable,
		TopStudents:      make([]StudentStatDTO, len(r.TopStudents)),
	}
	for i, st := range r.TopStudents {
		dto.TopStudents[i] = StudentStatDTO{
			StudentID:   string(st.StudentID),
			StudentName: st.StudentName,
			LessonCount: st.LessonCount,
			TotalHours:  st.TotalHours,
		}
	}
	return dto
}

// =============================================================================
// SETTINGS
// =============================================================================

type SettingsDTO struct {
	DefaultHourlyRate decimal.Decimal `json:"default_hourly_rate" validate:"gte=0"`
	DefaultNoShowRule string          `json:"default_no_show_fee_rule" validate:"required,oneof=NONE HALF FULL"`
	Timezone          string          `json:"timezone" validate:"required"`
	WorkdayStart      string          `json:"workday_start" validate:"required,datetime=15:04"`
	WorkdayEnd        string          `json:"workday_end" validate:"required,datetime=15:04"`
	WeekStart         *int            `json:"week_start" validate:"required,min=0,max=6"`
	OverdueDays       *int            `json:"overdue_days" validate:"required,min=0,max=365"`
}

func toSettingsDTO(s schedule.Settings) SettingsDTO {
	weekStart, overdue := int(s.WeekStart), s.OverdueDays
	return SettingsDTO{
		DefaultHourlyRate: s.DefaultHourlyRate,
		DefaultNoShowRule: string(s.DefaultNoShowRule),
		Timezone:          s.Timezone,
		WorkdayStart:      s.WorkdayStart,
		WorkdayEnd:        s.WorkdayEnd,
		WeekStart:         &weekStart,
		OverdueDays:       &overdue,
	}
}

func (d SettingsDTO) toSettings(owner schedule.OwnerID) schedule.Settings {
	return schedule.Settings{
		OwnerID:           owner,
		DefaultHourlyRate: d.DefaultHourlyRate,
		DefaultNoShowRule: schedule.NoShowRule(d.DefaultNoShowRule),
		Timezone:          d.Timezone,
		WorkdayStart:      d.WorkdayStart,
		WorkdayEnd:        d.WorkdayEnd,
		WeekStart:         time.Weekday(*d.WeekStart),
		OverdueDays:       *d.OverdueDays,
	}
}

// =============================================================================
// DASHBOARD
// =============================================================================

type DashboardLessonDTO struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	StudentName   string    `json:"student_name"`
	StartDatetime time.Time `json:"start_datetime"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
}

type DashboardDTO struct {
	WeekStart           string               `json:"week_start"`
	WeekEnd             string               `json:"week_end"`
	WeeklyPaid          decimal.Decimal      `json:"weekly_paid"`
	MonthlyPaid         decimal.Decimal      `json:"monthly_paid"`
	MonthlyPotential    decimal.Decimal      `json:"monthly_potential"`
	ExpectedReceivables decimal.Decimal      `json:"expected_receivables"`
	OverdueReceivables  decimal.Decimal      `json:"overdue_receivables"`
	OverdueCount        int                  `json:"overdue_count"`
	UpcomingWeekLessons []DashboardLessonDTO `json:"upcoming_week_lessons"`
}

func toDashboardDTO(s finance.DashboardSummary) DashboardDTO {
	dto := DashboardDTO{
		WeekStart:           s.WeekStart.String(),
		WeekEnd:             s.WeekEnd.String(),
		WeeklyPaid:          s.WeeklyPaid,
		MonthlyPaid:         s.MonthlyPaid,
		MonthlyPotential:    s.MonthlyPotential,
		ExpectedReceivables: s.ExpectedReceivables,
		OverdueReceivables:  s.OverdueReceivables,
		OverdueCount:        s.OverdueCount,
		UpcomingWeekLessons: make([]DashboardLessonDTO, len(s.WeekLessons)),
	}
	for i, wl := range s.WeekLessons {
		dto.UpcomingWeekLessons[i] = DashboardLessonDTO{
			ID:            string(wl.Lesson.ID),
			StudentID:     string(wl.Lesson.StudentID),
			StudentName:   wl.StudentName,
			StartDatetime: wl.Lesson.StartAt,
			Status:        string(wl.Lesson.Status),
			PaymentStatus: string(wl.Lesson.PaymentStatus),
		}
	}
	return dto
}

// =============================================================================
// NOTES, HOMEWORK, CALENDAR NOTES
// =============================================================================

type NoteDTO struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NoteRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

func toNoteDTO(n schedule.Note) NoteDTO {
	return NoteDTO{
		ID:        string(n.ID),
		StudentID: string(n.StudentID),
		Text:      n.Text,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

type HomeworkDTO struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     *string   `json:"due_date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateHomeworkRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	DueDate     string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (r CreateHomeworkRequest) toInput() (scheduling.HomeworkInput, error) {
	in := scheduling.HomeworkInput{Title: r.Title, Description: r.Description}
	if r.DueDate != "" {
		d, err := schedule.ParseDate(r.DueDate)
		if err != nil {
			return in, schedule.Invalid("due_date", "must be YYYY-MM-DD")
		}
		in.DueDate = &d
	}
	return in, nil
}

// HomeworkPatchRequest changes the fields present. An empty due_date clears it.
type HomeworkPatchRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	DueDate     *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Status      *string `json:"status" validate:"omitempty,oneof=PENDING COMPLETED"`
}

func (r HomeworkPatchRequest) toPatch() (scheduling.HomeworkPatch, error) {
	p := scheduling.HomeworkPatch{Title: r.Title, Description: r.Description}
	if r.DueDate != nil {
		p.SetDueDate = true
		if *r.DueDate != "" {
			d, err := schedule.ParseDate(*r.DueDate)
			if err != nil {
				return p, schedule.Invalid("due_date", "must be YYYY-MM-DD")
			}
			p.DueDate = &d
		}
	}
	if r.Status != nil {
		s := schedule.HomeworkStatus(*r.Status)
		p.Status = &s
	}
	return p, nil
}

func toHomeworkDTO(h schedule.Homework) HomeworkDTO {
	dto := HomeworkDTO{
		ID:          string(h.ID),
		StudentID:   string(h.StudentID),
		Title:       h.Title,
		Description: h.Description,
		Status:      string(h.Status),
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
	if h.DueDate != nil {
		due := h.DueDate.String()
		dto.DueDate = &due
	}
	return dto
}

type CalendarNoteDTO struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`
	Note          string    `json:"note"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateCalendarNoteRequest struct {
	Title         string    `json:"title" validate:"required,max=200"`
	StartDatetime time.Time `json:"start_datetime" validate:"required"`
	EndDatetime   time.Time `json:"end_datetime" validate:"required"`
	Note          string    `json:"note" validate:"max=2000"`
}

func toCalendarNoteDTO(n schedule.CalendarNote) CalendarNoteDTO {
	return CalendarNoteDTO{
		ID:            string(n.ID),
		Title:         n.Title,
		StartDatetime: n.StartAt,
		EndDatetime:   n.EndAt,
		Note:          n.Note,
		CreatedAt:     n.CreatedAt,
	}
}

// =============================================================================
// DEMO SEED
// =============================================================================

type SeedResponse struct {
	Students int    `json:"students"`
	Series   int    `json:"series"`
	Lessons  int    `json:"lessons"`
	Message  string `json:"message"`
}
