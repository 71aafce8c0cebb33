package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/aidocs/platform/internal/apierror"
	"github.com/aidocs/platform/internal/application/access"
	"github.com/aidocs/platform/internal/application/artifact"
	"github.com/aidocs/platform/internal/application/file"
	"github.com/aidocs/platform/internal/application/ledger"
	"github.com/aidocs/platform/internal/application/marketplace"
	"github.com/aidocs/platform/internal/application/question"
	"github.com/aidocs/platform/internal/orchestrator"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// Handlers bundles the application services the HTTP layer dispatches to.
type Handlers struct {
	Ledger       *ledger.Service
	Artifacts    *artifact.Service
	Access       *access.Engine
	Marketplace  *marketplace.Service
	Questions    *question.Service
	Files        *file.Service
	Orchestrator *orchestrator.Orchestrator
}

// NewHandlers constructs a Handlers bundle.
func NewHandlers(l *ledger.Service, a *artifact.Service, ac *access.Engine, m *marketplace.Service, q *question.Service, f *file.Service, o *orchestrator.Orchestrator) *Handlers {
	return &Handlers{Ledger: l, Artifacts: a, Access: ac, Marketplace: m, Questions: q, Files: f, Orchestrator: o}
}

func respond(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func fail(c *gin.Context, err error) {
	apiErr := apierror.TranslateError(err)
	c.AbortWithStatusJSON(apiErr.HTTPStatus, apiErr)
}

// bindJSON binds the request body into obj, translating gin's
// validator.ValidationErrors into a field-level message instead of a bare
// "invalid request". Returns false (and has already written the error
// response) when binding failed.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				field := strings.ToLower(fe.Field())
				switch fe.Tag() {
				case "required":
					msgs = append(msgs, fmt.Sprintf("%s is required", field))
				case "min":
					msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
				case "max":
					msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
				default:
					msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
				}
			}
			fail(c, apierror.WithDetails("BAD_REQUEST", strings.Join(msgs, "; "), http.StatusBadRequest, nil))
			return false
		}
		fail(c, apierror.ErrBadRequest)
		return false
	}
	return true
}

// GetBalance returns the authenticated user's points balance.
func (h *Handlers) GetBalance(c *gin.Context) {
	userID, _ := GetUserID(c)
	account, err := h.Ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, account)
}

type createSlideDeckRequest struct {
	Title string              `json:"title" binding:"required"`
	Deck  *pkgmodels.SlideDeck `json:"deck" binding:"required"`
}

// CreateSlideDeck creates a new slide-deck artifact owned by the caller.
func (h *Handlers) CreateSlideDeck(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req createSlideDeckRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Artifacts.CreateSlideDeck(c.Request.Context(), userID, req.Title, req.Deck)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, a)
}

// GetArtifact enforces access control and returns an artifact's envelope.
func (h *Handlers) GetArtifact(c *gin.Context) {
	userID, _ := GetUserID(c)
	artifactID := c.Param("id")
	allowed, err := h.Access.CanAccess(c.Request.Context(), userID, artifactID, access.IntentView)
	if err != nil {
		fail(c, err)
		return
	}
	if !allowed {
		fail(c, pkgmodels.ErrAccessDenied)
		return
	}
	a, err := h.Artifacts.Get(c.Request.Context(), artifactID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, a)
}

type restoreVersionRequest struct {
	Version int `json:"version" binding:"required"`
}

// RestoreVersion rolls an artifact back to an earlier version snapshot.
func (h *Handlers) RestoreVersion(c *gin.Context) {
	artifactID := c.Param("id")
	var req restoreVersionRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Artifacts.RestoreVersion(c.Request.Context(), artifactID, req.Version)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, a)
}

type importChapterRequest struct {
	ParentID  *string `json:"parent_id"`
	SourceURL string  `json:"source_url"`
	HTML      string  `json:"html" binding:"required"`
}

// ImportChapter extracts readable content from a source HTML document and
// appends it as a new chapter in the book's tree.
func (h *Handlers) ImportChapter(c *gin.Context) {
	bookID := c.Param("id")
	var req importChapterRequest
	if !bindJSON(c, &req) {
		return
	}
	chapter, err := h.Artifacts.ImportChapterFromHTML(c.Request.Context(), bookID, req.ParentID, req.SourceURL, strings.NewReader(req.HTML))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, chapter)
}

// ExportBook renders a book and its chapter tree as a downloadable YAML file.
func (h *Handlers) ExportBook(c *gin.Context) {
	bookID := c.Param("id")
	data, err := h.Artifacts.ExportBookYAML(c.Request.Context(), bookID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="book.yaml"`)
	c.Data(http.StatusOK, "application/x-yaml", data)
}

// ImportBook creates a new book and chapter tree from an uploaded YAML file
// in the shape ExportBook produces.
func (h *Handlers) ImportBook(c *gin.Context) {
	userID, _ := GetUserID(c)
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, err)
		return
	}
	a, err := h.Artifacts.ImportBookYAML(c.Request.Context(), userID, data)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, a)
}

type publishRequest struct {
	Slug string `json:"slug"`
}

// Publish marks an artifact as a published marketplace listing.
func (h *Handlers) Publish(c *gin.Context) {
	artifactID := c.Param("id")
	var req publishRequest
	_ = c.ShouldBindJSON(&req)
	a, err := h.Marketplace.Publish(c.Request.Context(), artifactID, req.Slug)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, a)
}

type purchaseRequest struct {
	AccessType pkgmodels.AccessType `json:"access_type" binding:"required"`
}

// Purchase charges the caller and grants access to a marketplace listing.
func (h *Handlers) Purchase(c *gin.Context) {
	userID, _ := GetUserID(c)
	artifactID := c.Param("id")
	var req purchaseRequest
	if !bindJSON(c, &req) {
		return
	}
	grant, err := h.Marketplace.Purchase(c.Request.Context(), userID, artifactID, req.AccessType)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, grant)
}

// SubmitTest grades a taker's submission against a test artifact.
func (h *Handlers) SubmitTest(c *gin.Context) {
	userID, _ := GetUserID(c)
	testID := c.Param("id")

	allowed, err := h.Access.CanAccess(c.Request.Context(), userID, testID, access.IntentTakeTest)
	if err != nil {
		fail(c, err)
		return
	}
	if !allowed {
		fail(c, pkgmodels.ErrAccessDenied)
		return
	}

	var sub pkgmodels.Submission
	if !bindJSON(c, &sub) {
		return
	}
	sub.TestID = testID
	sub.TakerUserID = userID

	graded, err := h.Questions.Submit(c.Request.Context(), userID, &sub)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, graded)
}

// RequestWithdrawal submits an earnings payout request.
func (h *Handlers) RequestWithdrawal(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req struct {
		Amount int64 `json:"amount" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	w, err := h.Marketplace.RequestWithdrawal(c.Request.Context(), userID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, w)
}

// UploadFile stores an uploaded multipart file under the caller's account.
func (h *Handlers) UploadFile(c *gin.Context) {
	userID, _ := GetUserID(c)
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, apierror.ErrBadRequest)
		return
	}
	src, err := fh.Open()
	if err != nil {
		fail(c, apierror.ErrBadRequest)
		return
	}
	defer src.Close()

	mimeType := fh.Header.Get("Content-Type")
	folderID := c.PostForm("folder_id")
	f, err := h.Files.Upload(c.Request.Context(), userID, folderID, fh.Filename, mimeType, fh.Size, src)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, f)
}

// DownloadFile streams a previously uploaded file's content.
func (h *Handlers) DownloadFile(c *gin.Context) {
	fileID := c.Param("id")
	f, rc, err := h.Files.Download(c.Request.Context(), fileID)
	if err != nil {
		fail(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, f.SizeBytes, f.MimeType, rc, nil)
}

// DeleteFile soft-deletes a file.
func (h *Handlers) DeleteFile(c *gin.Context) {
	fileID := c.Param("id")
	if err := h.Files.Delete(c.Request.Context(), fileID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListFiles lists the caller's files, optionally scoped to a folder.
func (h *Handlers) ListFiles(c *gin.Context) {
	userID, _ := GetUserID(c)
	var folderID *string
	if v := c.Query("folder_id"); v != "" {
		folderID = &v
	}
	files, err := h.Files.List(c.Request.Context(), userID, folderID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, files)
}

type jobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// jobAccepted reports a freshly enqueued job as "pending" regardless of the
// queued/running distinction pkgmodels.JobStatus tracks internally, matching
// the uniform job-control response contract every domain action shares.
func jobAccepted(c *gin.Context, job *pkgmodels.Job, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusAccepted, jobResponse{JobID: job.ID, Status: "pending"})
}

type slideGenerateRequest struct {
	SlideIndices []int  `json:"slide_indices" binding:"required"`
	Prompt       string `json:"prompt" binding:"required"`
}

// SlideGenerate enqueues AI generation of a slide deck's content.
func (h *Handlers) SlideGenerate(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req slideGenerateRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Orchestrator.SlideGenerate(c.Request.Context(), userID, c.Param("id"), req.SlideIndices, req.Prompt)
	jobAccepted(c, job, err)
}

type slideFormatRequest struct {
	Instructions string `json:"instructions"`
}

// SlideFormat enqueues an AI reformat pass over a slide deck.
func (h *Handlers) SlideFormat(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req slideFormatRequest
	_ = c.ShouldBindJSON(&req)
	job, err := h.Orchestrator.SlideFormat(c.Request.Context(), userID, c.Param("id"), req.Instructions)
	jobAccepted(c, job, err)
}

type slideEditRequest struct {
	SlideIndices []int  `json:"slide_indices" binding:"required"`
	Instructions string `json:"instructions" binding:"required"`
}

// SlideEdit enqueues a targeted AI content edit of one or more slides.
func (h *Handlers) SlideEdit(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req slideEditRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Orchestrator.SlideEdit(c.Request.Context(), userID, c.Param("id"), req.SlideIndices, req.Instructions)
	jobAccepted(c, job, err)
}

type audioNarrationRequest struct {
	SlideIndices []int  `json:"slide_indices" binding:"required"`
	Voice        string `json:"voice"`
}

// AudioNarration enqueues narration synthesis for a set of slides.
func (h *Handlers) AudioNarration(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req audioNarrationRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Orchestrator.AudioNarration(c.Request.Context(), userID, c.Param("id"), req.SlideIndices, req.Voice)
	jobAccepted(c, job, err)
}

type chapterOpRequest struct {
	ChapterID      string `json:"chapter_id" binding:"required"`
	Instructions   string `json:"instructions"`
	TargetLanguage string `json:"target_language"`
}

// ChapterEdit enqueues an AI content edit of a chapter.
func (h *Handlers) ChapterEdit(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req chapterOpRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Orchestrator.ChapterEdit(c.Request.Context(), userID, c.Param("id"), req.ChapterID, req.Instructions)
	jobAccepted(c, job, err)
}

// ChapterFormat enqueues an AI reflow/reformat pass over a chapter.
func (h *Handlers) ChapterFormat(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req chapterOpRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Orchestrator.ChapterFormat(c.Request.Context(), userID, c.Param("id"), req.ChapterID)
	jobAccepted(c, job, err)
}

// ChapterTranslate enqueues AI translation of a chapter into a target language.
func (h *Handlers) ChapterTranslate(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req chapterOpRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Orchestrator.ChapterTranslate(c.Request.Context(), userID, c.Param("id"), req.ChapterID, req.TargetLanguage)
	jobAccepted(c, job, err)
}

// ChapterBilingual enqueues a side-by-side bilingual rendering of a chapter.
func (h *Handlers) ChapterBilingual(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req chapterOpRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Orchestrator.ChapterBilingual(c.Request.Context(), userID, c.Param("id"), req.ChapterID, req.TargetLanguage)
	jobAccepted(c, job, err)
}

type imageGenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// ImageGenerate enqueues generation of cover art for a book.
func (h *Handlers) ImageGenerate(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req imageGenerateRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Orchestrator.ImageGenerate(c.Request.Context(), userID, c.Param("id"), req.Prompt)
	jobAccepted(c, job, err)
}

type testGenerateRequest struct {
	SourceText    string `json:"source_text" binding:"required"`
	QuestionCount int    `json:"question_count"`
}

// TestGenerate enqueues AI generation of a question set from source material.
func (h *Handlers) TestGenerate(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req testGenerateRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.Orchestrator.TestGenerate(c.Request.Context(), userID, c.Param("id"), req.SourceText, req.QuestionCount)
	jobAccepted(c, job, err)
}

// JobStatus reports a queued or running job's current status and progress.
func (h *Handlers) JobStatus(c *gin.Context) {
	job, err := h.Orchestrator.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, job)
}

// ListJobs lists the caller's jobs across every domain.
func (h *Handlers) ListJobs(c *gin.Context) {
	userID, _ := GetUserID(c)
	jobs, err := h.Orchestrator.ListJobs(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, jobs)
}

type createFolderRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parent_id"`
}

// CreateFolder creates a new folder for the caller.
func (h *Handlers) CreateFolder(c *gin.Context) {
	userID, _ := GetUserID(c)
	var req createFolderRequest
	if !bindJSON(c, &req) {
		return
	}
	folder, err := h.Files.CreateFolder(c.Request.Context(), userID, req.Name, req.ParentID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, folder)
}
