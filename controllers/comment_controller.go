package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blogium/blogium/models"
	"github.com/blogium/blogium/utils"
)

// CommentController manages replies on posts.
type CommentController struct {
	db *gorm.DB
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(db *gorm.DB) *CommentController {
	return &CommentController{db: db}
}

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

// CreateComment allows authenticated users to comment on a post. One single
// write per submission; CreatedAt fixes the comment's position in the
// ascending sequence and never changes afterwards.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	var req commentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	text := utils.Sanitize(req.Text)
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "text cannot be empty")
		return
	}

	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40064, "invalid post id")
		return
	}
	var post models.Post
	if err := c.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: &userID,
		Text:     text,
	}
	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to create comment")
		return
	}
	if err := c.db.Preload("Author").First(&comment, comment.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to load comment")
		return
	}

	utils.InvalidateByPrefix("cache:post:detail:" + strconv.Itoa(int(post.ID)))
	utils.InvalidateByPrefix("cache:feed:")

	utils.Success(ctx, gin.H{"comment": comment})
}

// UpdateComment allows the comment author to edit the text. CreatedAt, and
// with it the ordering, is untouched.
func (c *CommentController) UpdateComment(ctx *gin.Context) {
	var req commentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid request payload")
		return
	}
	text := utils.Sanitize(req.Text)
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40033, "text cannot be empty")
		return
	}

	comment, ok := c.loadComment(ctx)
	if !ok {
		return
	}

	userID, authed := getUserID(ctx)
	if !authed {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}
	if comment.AuthorID == nil || *comment.AuthorID != userID {
		utils.Error(ctx, http.StatusForbidden, 40303, "you can only edit your own comment")
		return
	}

	comment.Text = text
	if err := c.db.Save(comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to update comment")
		return
	}

	utils.InvalidateByPrefix("cache:post:detail:" + strconv.Itoa(int(comment.PostID)))
	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment allows the comment author or an administrator to delete a comment.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	comment, ok := c.loadComment(ctx)
	if !ok {
		return
	}

	userID, authed := getUserID(ctx)
	if !authed {
		utils.Error(ctx, http.StatusUnauthorized, 40115, "unauthorized")
		return
	}
	if (comment.AuthorID == nil || *comment.AuthorID != userID) && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40304, "you can only delete your own comment")
		return
	}

	if err := c.db.Delete(comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to delete comment")
		return
	}

	utils.InvalidateByPrefix("cache:post:detail:" + strconv.Itoa(int(comment.PostID)))
	utils.InvalidateByPrefix("cache:feed:")
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}

func (c *CommentController) loadComment(ctx *gin.Context) (*models.Comment, bool) {
	id, ok := parseID(ctx.Param("commentId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40065, "invalid comment id")
		return nil, false
	}
	var comment models.Comment
	if err := c.db.First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40405, "comment not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to load comment")
		return nil, false
	}
	return &comment, true
}
