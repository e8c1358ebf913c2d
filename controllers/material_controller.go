package controllers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/services"
)

type MaterialController struct {
	materials *services.MaterialService
	reviews   *services.ReviewService
	log       *logger.Logger
}

func NewMaterialController(materials *services.MaterialService, reviews *services.ReviewService, log *logger.Logger) *MaterialController {
	return &MaterialController{materials: materials, reviews: reviews, log: log.With("controller", "materials")}
}

func (mc *MaterialController) CreateFromText(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input services.CreateTextMaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := mc.materials.CreateFromText(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusCreated, "material created, generating study content", item)
}

func (mc *MaterialController) CreateFromURL(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input services.CreateURLMaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := mc.materials.CreateFromURL(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusCreated, "material created, generating study content", item)
}

// CreateFromFile accepts a multipart upload with a "file" part and an
// optional "title" field.
func (mc *MaterialController) CreateFromFile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, mc.log, services.ErrInvalidParams("file is required"))
		return
	}
	if header.Size > services.MaxDocumentBytes {
		respondError(c, mc.log, services.NewAppError(http.StatusBadRequest, services.CodePageTooLarge, "file is too large, the limit is 5 MB", nil))
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, services.MaxDocumentBytes+1))
	if err != nil {
		respondError(c, mc.log, err)
		return
	}

	item, err := mc.materials.CreateFromFile(c.Request.Context(), userID, services.CreateFileMaterialInput{
		Title:    c.PostForm("title"),
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusCreated, "material created, generating study content", item)
}

func (mc *MaterialController) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, err1 := queryInt(c, "page", 1)
	pageSize, err2 := queryInt(c, "page_size", services.DefaultPageSize)
	if err1 != nil || err2 != nil {
		respondError(c, mc.log, services.ErrInvalidParams("page and page_size must be integers"))
		return
	}

	result, err := mc.materials.List(c.Request.Context(), userID, services.ListMaterialsInput{
		Page:     page,
		PageSize: pageSize,
		Status:   c.Query("status"),
	})
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusOK, "success", result)
}

func (mc *MaterialController) Detail(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := mc.materials.Detail(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusOK, "success", detail)
}

func (mc *MaterialController) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	status, err := mc.materials.Status(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusOK, "success", status)
}

func (mc *MaterialController) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := mc.materials.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusOK, "material deleted", nil)
}

func (mc *MaterialController) ListVocabulary(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	items, err := mc.reviews.ListVocabulary(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusOK, "success", items)
}

func (mc *MaterialController) UpdateVocabulary(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	vocabID, ok := parseIDParam(c, "vocab_id")
	if !ok {
		return
	}
	var input services.UpdateVocabularyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := mc.reviews.UpdateVocabulary(c.Request.Context(), userID, id, vocabID, input)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusOK, "success", item)
}

// VocabularyAudio streams an MP3 of the word, or of its example sentence
// with ?part=example.
func (mc *MaterialController) VocabularyAudio(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	vocabID, ok := parseIDParam(c, "vocab_id")
	if !ok {
		return
	}
	var example bool
	switch c.DefaultQuery("part", "word") {
	case "word":
	case "example":
		example = true
	default:
		respondError(c, mc.log, services.ErrInvalidParams("part must be word or example"))
		return
	}

	audio, err := mc.reviews.Pronounce(c.Request.Context(), userID, id, vocabID, example)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	c.Header("X-Audio-Duration", strconv.FormatFloat(audio.Duration.Seconds(), 'f', 2, 64))
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, "audio/mpeg", audio.Data)
}

func (mc *MaterialController) ListQuestions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	set, err := mc.reviews.ListQuestions(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusOK, "success", set)
}

func (mc *MaterialController) SubmitAnswer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var input services.SubmitAnswerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := mc.reviews.SubmitAnswer(c.Request.Context(), userID, id, input)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	respond(c, http.StatusOK, "success", result)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
