package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/service"
)

type MovieNightHandler struct {
	nights    service.IMovieNightService
	reminders service.IReminderService
}

func NewMovieNightHandler(nights service.IMovieNightService, reminders service.IReminderService) *MovieNightHandler {
	return &MovieNightHandler{nights: nights, reminders: reminders}
}

type statusRequest struct {
	Status model.NightStatus `json:"status" binding:"required"`
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

type reminderRequest struct {
	Force bool `json:"force"`
}

func (h *MovieNightHandler) List(c *gin.Context) {
	nights, err := h.nights.List(c.Request.Context(), CurrentMembership(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nights)
}

func (h *MovieNightHandler) Create(c *gin.Context) {
	var in service.NightInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	night, err := h.nights.Create(c.Request.Context(), CurrentMembership(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, night)
}

func (h *MovieNightHandler) Get(c *gin.Context) {
	night, err := h.nights.Get(c.Request.Context(), CurrentMembership(c), c.Param("night_id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, night)
}

func (h *MovieNightHandler) Update(c *gin.Context) {
	var in service.NightInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	night, err := h.nights.Update(c.Request.Context(), CurrentMembership(c), c.Param("night_id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, night)
}

func (h *MovieNightHandler) Lock(c *gin.Context) {
	h.setLocked(c, true)
}

func (h *MovieNightHandler) Unlock(c *gin.Context) {
	h.setLocked(c, false)
}

func (h *MovieNightHandler) setLocked(c *gin.Context, locked bool) {
	night, err := h.nights.SetLocked(c.Request.Context(), CurrentMembership(c), c.Param("night_id"), locked)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, night)
}

func (h *MovieNightHandler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	night, err := h.nights.SetStatus(c.Request.Context(), CurrentMembership(c), c.Param("night_id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, night)
}

func (h *MovieNightHandler) SetAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.nights.SetAvailability(c.Request.Context(), CurrentMembership(c), c.Param("night_id"), *req.IsAvailable)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, a)
}

func (h *MovieNightHandler) Availability(c *gin.Context) {
	summary, err := h.nights.Availability(c.Request.Context(), CurrentMembership(c), c.Param("night_id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, summary)
}

// TriggerReminder sends the RSVP reminder now. The body is optional; with
// force set the due check is skipped.
func (h *MovieNightHandler) TriggerReminder(c *gin.Context) {
	var req reminderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	out, err := h.reminders.Trigger(c.Request.Context(), CurrentMembership(c), c.Param("night_id"), req.Force)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *MovieNightHandler) Calendar(c *gin.Context) {
	file, err := h.nights.Calendar(c.Request.Context(), CurrentMembership(c), c.Param("night_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(file.Content))
}
