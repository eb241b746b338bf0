/*
handlers.go - HTTP API handlers for the tutor lesson engine

PURPOSE:
  Exposes the scheduling service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the scheduling package.

ENDPOINTS (all under /api, owner from the X-Owner-ID header):
  Students:
    GET    /students                    List students with balances
    POST   /students                    Create student
    GET    /students/{id}               Student detail with lessons and balance
    GET    /students/{id}/recurrences   Series of a student, active first
    GET    /students/{id}/notes         Notes about a student, newest first
    POST   /students/{id}/notes         Add note
    GET    /students/{id}/homework      Homework (?status=ALL|PENDING|COMPLETED)
    POST   /students/{id}/homework      Assign homework

  Notes and homework:
    PATCH  /notes/{id}                  Edit note text
    DELETE /notes/{id}                  Delete note
    PATCH  /homework/{id}               Partial edit; "due_date": "" clears it
    DELETE /homework/{id}               Delete homework

  Calendar notes:
    GET    /calendar-notes              List (?from=&to=), by start
    POST   /calendar-notes              Create
    DELETE /calendar-notes/{id}         Delete

  Lessons:
    GET    /lessons                     List lessons (?from=&to=&student_id=)
    POST   /lessons                     Create standalone lesson
    PATCH  /lessons/{id}                Edit one lesson
    DELETE /lessons/{id}                Delete one lesson
    POST   /lessons/{id}/apply-scope    Edit THIS / THIS_AND_FUTURE / ALL

  Recurrences:
    POST   /recurrences/weekly          Create weekly series
    POST   /recurrences/stop            Stop series (NEXT or DATE)

  Reports and settings:
    GET    /reports/monthly             Monthly summary (?from=&to=)
    GET    /dashboard/summary           Week and month totals (?week_start=)
    GET    /settings                    Owner settings
    PUT    /settings                    Replace owner settings
    POST   /settings/demo-seed          Load demo data (seed.go)

REQUEST FLOW:
  1. Decode JSON body
  2. Validate tags (validate.go)
  3. Call the scheduling service
  4. Serialize response DTO
  5. Map errors to status codes

ERROR HANDLING:
  - 400: schedule.ErrValidation, malformed JSON, bad query parameters
  - 401: missing owner header (middleware.go)
  - 404: schedule.ErrNotFound, including rows of other owners
  - 500: everything else; details are logged, not returned

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/schedule"
	"github.com/tutordesk/lesson-engine/scheduling"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc    *scheduling.Service
	logger *zap.Logger
}

func NewHandler(svc *scheduling.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns all students of the owner with their balances.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.ListStudents(r.Context(), OwnerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]StudentSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = StudentSummaryDTO{StudentDTO: toStudentDTO(s.Student), Balance: toBalanceDTO(s.Balance)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStudent creates a new student.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if !h.bind(w, r, &req) {
		return
	}

	st, err := h.svc.CreateStudent(r.Context(), OwnerFrom(r.Context()), scheduling.StudentInput{
		FullName:          req.FullName,
		Subject:           req.Subject,
		Phone:             req.Phone,
		Email:             req.Email,
		HourlyRateDefault: req.HourlyRateDefault,
		Status:            schedule.StudentStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(*st))
}

// GetStudent returns one student with lessons and balance.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := schedule.StudentID(chi.URLParam(r, "id"))
	detail, err := h.svc.GetStudent(r.Context(), OwnerFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StudentDetailDTO{
		Student: toStudentDTO(detail.Student),
		Lessons: toLessonDTOs(detail.Lessons),
		Balance: toBalanceDTO(detail.Balance),
	})
}

// ListStudentSeries returns the recurrences of one student.
func (h *Handler) ListStudentSeries(w http.ResponseWriter, r *http.Request) {
	id := schedule.StudentID(chi.URLParam(r, "id"))
	series, err := h.svc.ListSeries(r.Context(), OwnerFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]SeriesDTO, len(series))
	for i, s := range series {
		dtos[i] = toSeriesDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LESSON HANDLERS
// =============================================================================

// ListLessons returns lessons whose start falls in [from, to] local days.
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := OwnerFrom(ctx)

	from, err := optionalDate(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := optionalDate(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filter := schedule.LessonFilter{StudentID: schedule.StudentID(r.URL.Query().Get("student_id"))}
	if from != nil || to != nil {
		settings, err := h.svc.GetSettings(ctx, owner)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		loc := settings.Location()
		if from != nil {
			filter.From = from.In(loc)
		}
		if to != nil {
			filter.To = to.AddDays(1).In(loc).Add(-1)
		}
	}

	lessons, err := h.svc.ListLessons(ctx, owner, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonDTOs(lessons))
}

// CreateLesson creates a standalone lesson.
func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	var req CreateLessonRequest
	if !h.bind(w, r, &req) {
		return
	}
	l, err := h.svc.CreateLesson(r.Context(), OwnerFrom(r.Context()), req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLessonDTO(*l))
}

// UpdateLesson edits a single lesson. It is apply-scope with THIS.
func (h *Handler) UpdateLesson(w http.ResponseWriter, r *http.Request) {
	var req PatchDTO
	if !h.bind(w, r, &req) {
		return
	}
	id := schedule.LessonID(chi.URLParam(r, "id"))
	l, err := h.svc.UpdateLesson(r.Context(), OwnerFrom(r.Context()), id, req.toPatch())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonDTO(*l))
}

// DeleteLesson removes one lesson.
func (h *Handler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	id := schedule.LessonID(chi.URLParam(r, "id"))
	if err := h.svc.DeleteLesson(r.Context(), OwnerFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyScope edits the selected lesson and, per scope, its siblings.
func (h *Handler) ApplyScope(w http.ResponseWriter, r *http.Request) {
	var req ApplyScopeRequest
	if !h.bind(w, r, &req) {
		return
	}
	id := schedule.LessonID(chi.URLParam(r, "id"))
	res, err := h.svc.ApplyScope(r.Context(), OwnerFrom(r.Context()), id, scheduling.Scope(req.Scope), req.Patch.toPatch())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, ApplyScopeResponse{
		Scope:        string(res.Scope),
		UpdatedCount: res.UpdatedCount,
		Warnings:     warnings,
	})
}

// =============================================================================
// RECURRENCE HANDLERS
// =============================================================================

// CreateWeekly creates a weekly series and all of its lessons.
func (h *Handler) CreateWeekly(w http.ResponseWriter, r *http.Request) {
	var req CreateWeeklyRequest
	if !h.bind(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.CreateWeekly(r.Context(), OwnerFrom(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateWeeklyResponse{
		RecurrenceID: string(res.Recurrence.ID),
		CreatedCount: len(res.Lessons),
	})
}

// StopRecurrence ends a series and cancels its remaining lessons.
func (h *Handler) StopRecurrence(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if !h.bind(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.Stop(r.Context(), OwnerFrom(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StopResponse{
		CancelledCount:        res.CancelledCount,
		StopEffectiveDatetime: res.StopEffectiveAt,
		EndDate:               res.EndDate.String(),
		Message:               res.Message,
	})
}

// =============================================================================
// REPORT AND SETTINGS HANDLERS
// =============================================================================

// MonthlyReport summarizes a range of local days, the current month by default.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	from, err := optionalDate(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := optionalDate(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.svc.MonthlyReport(r.Context(), OwnerFrom(r.Context()), scheduling.ReportRange{From: from, To: to})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyReportDTO(*report))
}

// DashboardSummary reports the week containing ?week_start (today by default).
func (h *Handler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	weekOf, err := optionalDate(r, "week_start")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sum, err := h.svc.Dashboard(r.Context(), OwnerFrom(r.Context()), weekOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(*sum))
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetSettings(r.Context(), OwnerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(st))
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsDTO
	if !h.bind(w, r, &req) {
		return
	}
	st, err := h.svc.SaveSettings(r.Context(), req.toSettings(OwnerFrom(r.Context())))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(st))
}

// =============================================================================
// NOTE AND HOMEWORK HANDLERS
// =============================================================================

func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	id := schedule.StudentID(chi.URLParam(r, "id"))
	notes, err := h.svc.ListNotes(r.Context(), OwnerFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]NoteDTO, len(notes))
	for i, n := range notes {
		dtos[i] = toNoteDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !h.bind(w, r, &req) {
		return
	}
	id := schedule.StudentID(chi.URLParam(r, "id"))
	n, err := h.svc.AddNote(r.Context(), OwnerFrom(r.Context()), id, req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteDTO(*n))
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !h.bind(w, r, &req) {
		return
	}
	id := schedule.NoteID(chi.URLParam(r, "id"))
	n, err := h.svc.UpdateNote(r.Context(), OwnerFrom(r.Context()), id, req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(*n))
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := schedule.NoteID(chi.URLParam(r, "id"))
	if err := h.svc.DeleteNote(r.Context(), OwnerFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListHomework(w http.ResponseWriter, r *http.Request) {
	status, err := scheduling.ParseHomeworkStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := schedule.StudentID(chi.URLParam(r, "id"))
	list, err := h.svc.ListHomework(r.Context(), OwnerFrom(r.Context()), id, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]HomeworkDTO, len(list))
	for i, hw := range list {
		dtos[i] = toHomeworkDTO(hw)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateHomework(w http.ResponseWriter, r *http.Request) {
	var req CreateHomeworkRequest
	if !h.bind(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := schedule.StudentID(chi.URLParam(r, "id"))
	hw, err := h.svc.AddHomework(r.Context(), OwnerFrom(r.Context()), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHomeworkDTO(*hw))
}

func (h *Handler) UpdateHomework(w http.ResponseWriter, r *http.Request) {
	var req HomeworkPatchRequest
	if !h.bind(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := schedule.HomeworkID(chi.URLParam(r, "id"))
	hw, err := h.svc.UpdateHomework(r.Context(), OwnerFrom(r.Context()), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHomeworkDTO(*hw))
}

func (h *Handler) DeleteHomework(w http.ResponseWriter, r *http.Request) {
	id := schedule.HomeworkID(chi.URLParam(r, "id"))
	if err := h.svc.DeleteHomework(r.Context(), OwnerFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CALENDAR NOTE HANDLERS
// =============================================================================

// ListCalendarNotes bounds by local days like ListLessons.
func (h *Handler) ListCalendarNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := OwnerFrom(ctx)

	from, err := optionalDate(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := optionalDate(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var filter schedule.CalendarNoteFilter
	if from != nil || to != nil {
		settings, err := h.svc.GetSettings(ctx, owner)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		loc := settings.Location()
		if from != nil {
			filter.From = from.In(loc)
		}
		if to != nil {
			filter.To = to.AddDays(1).In(loc).Add(-1)
		}
	}

	notes, err := h.svc.ListCalendarNotes(ctx, owner, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]CalendarNoteDTO, len(notes))
	for i, n := range notes {
		dtos[i] = toCalendarNoteDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCalendarNote(w http.ResponseWriter, r *http.Request) {
	var req CreateCalendarNoteRequest
	if !h.bind(w, r, &req) {
		return
	}
	n, err := h.svc.AddCalendarNote(r.Context(), OwnerFrom(r.Context()), scheduling.CalendarNoteInput{
		Title:   req.Title,
		StartAt: req.StartDatetime,
		EndAt:   req.EndDatetime,
		Note:    req.Note,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCalendarNoteDTO(*n))
}

func (h *Handler) DeleteCalendarNote(w http.ResponseWriter, r *http.Request) {
	id := schedule.CalendarNoteID(chi.URLParam(r, "id"))
	if err := h.svc.DeleteCalendarNote(r.Context(), OwnerFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

// bind decodes and validates the request body into dst. On failure it writes
// a 400 response and returns false.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Details: err.Error()})
		return false
	}
	if details := validateRequest(dst); details != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: details})
		return false
	}
	return true
}

func optionalDate(r *http.Request, key string) (*schedule.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := schedule.ParseDate(raw)
	if err != nil {
		return nil, schedule.Invalid(key, "must be YYYY-MM-DD")
	}
	return &d, nil
}

// writeError maps service errors to status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nf *schedule.NotFoundError
		ve *schedule.ValidationError
	)
	switch {
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: nf.Error()})
	case errors.As(err, &ve):
		details := map[string]string{}
		if ve.Field != "" {
			details[ve.Field] = ve.Message
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Details: details})
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
