package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	taskdomain "task-tracker/backend/internal/task/domain"
	taskservice "task-tracker/backend/internal/task/service"
)

type createTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// updateTaskRequest uses pointers so absent fields are left unchanged.
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type taskResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTaskResponse(t *taskdomain.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (h *handlers) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title is required")
		return
	}
	in := taskservice.CreateInput{Title: req.Title, Description: req.Description}
	if req.Status != "" {
		st, err := taskdomain.ParseStatus(req.Status)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		in.Status = st
	}
	task, err := h.tasks.Create(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskResponse(task))
}

func (h *handlers) listTasks(c *gin.Context) {
	var filter taskdomain.ListFilter
	if raw := c.Query("status"); raw != "" {
		st, err := taskdomain.ParseStatus(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.Status = &st
	}
	tasks, err := h.tasks.List(c.Request.Context(), currentUser(c).ID, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getTask(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *handlers) updateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	patch := taskdomain.Patch{Title: req.Title, Description: req.Description}
	if req.Status != nil {
		st, err := taskdomain.ParseStatus(*req.Status)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		patch.Status = &st
	}
	task, err := h.tasks.Update(c.Request.Context(), currentUser(c).ID, c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *handlers) deleteTask(c *gin.Context) {
	id := c.Param("id")
	if err := h.tasks.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("Task %s deleted successfully", id)})
}
