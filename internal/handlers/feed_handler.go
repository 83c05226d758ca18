package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/services"
)

const maxMediaBytes = 25 << 20

type postBody struct {
	Body  string         `json:"body"`
	Media []models.Media `json:"media"`
}

func UploadFeedMedia(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMediaBytes)
		fh, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "file is required")
			return
		}
		file, err := fh.Open()
		if err != nil {
			badRequest(c, "could not read upload")
			return
		}
		defer file.Close()

		media, err := f.UploadMedia(c.Request.Context(), actor, file, fh.Filename)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(media, "media uploaded"))
	}
}

func CreatePost(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req postBody
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		post, err := f.CreatePost(c.Request.Context(), actor, req.Body, req.Media)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(post, "post created"))
	}
}

// ListPosts is the public feed; author narrows it to one profile.
func ListPosts(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, limit := paging(c)

		posts, total, err := f.ListPosts(c.Request.Context(), c.Query("author"), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(posts, offset, limit, total))
	}
}

func GetPost(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		post, err := f.GetPost(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(post, ""))
	}
}

func UpdatePost(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req postBody
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		post, err := f.UpdatePost(c.Request.Context(), actor, c.Param("id"), req.Body)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(post, "post updated"))
	}
}

func DeletePost(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		if err := f.DeletePost(c.Request.Context(), actor, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "post deleted"))
	}
}

func LikePost(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		changed, err := f.Like(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"liked": true, "changed": changed}, ""))
	}
}

func UnlikePost(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		changed, err := f.Unlike(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"liked": false, "changed": changed}, ""))
	}
}

func AddComment(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req struct {
			Body string `json:"body" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "comment body is required")
			return
		}

		comment, err := f.AddComment(c.Request.Context(), actor, c.Param("id"), req.Body)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(comment, "comment added"))
	}
}

func ListComments(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, limit := paging(c)

		comments, total, err := f.ListComments(c.Request.Context(), c.Param("id"), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(comments, offset, limit, total))
	}
}

func DeleteComment(f *services.FeedService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		if err := f.DeleteComment(c.Request.Context(), actor, c.Param("comment_id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "comment deleted"))
	}
}
