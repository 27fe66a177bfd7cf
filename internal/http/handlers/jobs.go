package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/jobs"
)

// payloadField is the multipart field holding the JSON body. Every other file
// part is an asset named after its form field.
const payloadField = "payload"

type submitRequest struct {
	TemplateID  string            `json:"template_id" validate:"required,max=64"`
	Fields      map[string]any    `json:"fields"`
	AssetKeys   []string          `json:"asset_keys" validate:"omitempty,max=32,dive,required"`
	ProjectName string            `json:"project_name" validate:"omitempty,max=200"`
	Draft       bool              `json:"draft"`
	Assets      map[string][]byte `json:"assets,omitempty"`
}

type downloadRequest struct {
	Password string `json:"password" validate:"required"`
}

type acceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type jobView struct {
	JobID              string     `json:"job_id"`
	ProjectName        string     `json:"project_name"`
	Status             string     `json:"status"`
	ErrorDetail        string     `json:"error_detail,omitempty"`
	ResultID           string     `json:"result_id,omitempty"`
	CredentialIssued   bool       `json:"credential_issued"`
	CredentialConsumed bool       `json:"credential_consumed"`
	Archived           bool       `json:"archived"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

func newJobView(v jobs.StatusView) jobView {
	return jobView{
		JobID:              v.JobID,
		ProjectName:        v.ProjectName,
		Status:             string(v.Status),
		ErrorDetail:        v.ErrorDetail,
		ResultID:           v.ResultID,
		CredentialIssued:   v.CredentialIssued,
		CredentialConsumed: v.CredentialConsumed,
		Archived:           v.IsArchived,
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
		CompletedAt:        v.CompletedAt,
	}
}

// JobsSubmit accepts a JSON body, or multipart/form-data with the JSON in the
// payload field and one file part per asset.
func (a *App) JobsSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)

	req, err := a.decodeSubmit(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", describeInvalid(err))
		return
	}

	jobID, err := a.Jobs.Submit(r.Context(), jobs.SubmitRequest{
		Input: domain.InputSpec{
			TemplateID: req.TemplateID,
			Fields:     req.Fields,
			AssetKeys:  req.AssetKeys,
		},
		OwnerID:     a.requester(r),
		ProjectName: req.ProjectName,
		Assets:      req.Assets,
		Draft:       req.Draft,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	status := domain.JobStatusPending
	if req.Draft {
		status = domain.JobStatusDraft
	}
	a.json(w, http.StatusAccepted, acceptedResponse{JobID: jobID, Status: string(status)})
}

func (a *App) decodeSubmit(r *http.Request) (*submitRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.New("invalid payload")
		}
		return &req, nil
	}

	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		return nil, errors.New("invalid multipart form")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var req submitRequest
	if err := json.Unmarshal([]byte(r.FormValue(payloadField)), &req); err != nil {
		return nil, fmt.Errorf("invalid %s field", payloadField)
	}
	for name, headers := range r.MultipartForm.File {
		if name == payloadField || len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			return nil, fmt.Errorf("read asset %s", name)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read asset %s", name)
		}
		if req.Assets == nil {
			req.Assets = make(map[string][]byte)
		}
		req.Assets[name] = data
	}
	return &req, nil
}

func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	owner := a.requester(r)
	if owner == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "X-Owner-ID header required")
		return
	}
	views, err := a.Jobs.ListOwned(r.Context(), owner)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]jobView, 0, len(views))
	for _, v := range views {
		items = append(items, newJobView(v))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	view, err := a.Jobs.Status(r.Context(), chi.URLParam(r, "id"), a.requester(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobView(*view))
}

func (a *App) JobDispatch(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := a.Jobs.Dispatch(r.Context(), jobID, a.requester(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, acceptedResponse{JobID: jobID, Status: string(domain.JobStatusPending)})
}

// Preview serves the generated document of a completed site.
func (a *App) Preview(w http.ResponseWriter, r *http.Request) {
	doc, err := a.Jobs.Preview(r.Context(), chi.URLParam(r, "result_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// JobDownload exchanges the one-time password for the site archive.
func (a *App) JobDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", describeInvalid(err))
		return
	}

	dl, err := a.Jobs.Download(r.Context(), chi.URLParam(r, "id"), req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}

// JobCredential issues a new download password and mails it to the contact
// address. The password is never returned over HTTP.
func (a *App) JobCredential(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if _, err := a.Jobs.RegenerateCredential(r.Context(), jobID, a.requester(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, acceptedResponse{JobID: jobID, Status: "credential_sent"})
}

func (a *App) JobRegenerate(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := a.Jobs.RegenerateJob(r.Context(), jobID, a.requester(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, acceptedResponse{JobID: jobID, Status: string(domain.JobStatusPending)})
}

func (a *App) JobArchive(w http.ResponseWriter, r *http.Request) {
	if err := a.Jobs.Archive(r.Context(), chi.URLParam(r, "id"), a.requester(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func describeInvalid(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid payload"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
