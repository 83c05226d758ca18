package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/services"
)

func ListJobs(j *services.JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, limit := paging(c)

		jobs, total, err := j.ListOpenJobs(c.Request.Context(), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(jobs, offset, limit, int64(total)))
	}
}

func GetJob(j *services.JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		job, err := j.GetJob(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(job, ""))
	}
}

func CreateJob(j *services.JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var job models.JobPosting
		if err := c.ShouldBindJSON(&job); err != nil {
			badRequest(c, err.Error())
			return
		}

		created, err := j.CreateJob(c.Request.Context(), actor, &job)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(created, "job posted"))
	}
}

func ApplyToJob(j *services.JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var app models.JobApplication
		if err := c.ShouldBindJSON(&app); err != nil {
			badRequest(c, err.Error())
			return
		}

		created, err := j.Apply(c.Request.Context(), actor, id, &app)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(created, "application sent"))
	}
}

func ListJobApplications(j *services.JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		offset, limit := paging(c)

		apps, total, err := j.ListApplications(c.Request.Context(), actor, id, offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(apps, offset, limit, int64(total)))
	}
}

func AcceptApplication(j *services.JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		app, err := j.AcceptApplication(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(app, "application accepted"))
	}
}

func RejectApplication(j *services.JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		app, err := j.RejectApplication(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(app, "application rejected"))
	}
}
