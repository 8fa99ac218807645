package v1alpha1

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/service"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

const maxUploadBytes = 64 << 20

type ServiceHandler struct {
	assignmentSrv *service.AssignmentService
	submissionSrv *service.SubmissionService
	exportSrv     *service.ExportService
	log           *zap.SugaredLogger
}

func NewServiceHandler(assignmentSrv *service.AssignmentService, submissionSrv *service.SubmissionService, exportSrv *service.ExportService) *ServiceHandler {
	return &ServiceHandler{
		assignmentSrv: assignmentSrv,
		submissionSrv: submissionSrv,
		exportSrv:     exportSrv,
		log:           zap.S().Named("api_handler"),
	}
}

func (h *ServiceHandler) Routes(r chi.Router) {
	r.Route("/api/v1alpha1", func(r chi.Router) {
		r.Route("/assignments", func(r chi.Router) {
			r.Post("/", h.CreateAssignment)
			r.Get("/", h.ListAssignments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetAssignment)
				r.Get("/status", h.GetAssignmentStatus)
				r.Get("/table", h.GetAssignmentTable)
				r.Get("/export", h.ExportAssignment)
				r.Post("/requeue", h.RequeueAssignmentStage)
				r.Post("/orchestrate", h.OrchestrateAssignment)
				r.Route("/submissions", func(r chi.Router) {
					r.Post("/", h.CreateSubmission)
					r.Get("/", h.ListSubmissions)
				})
			})
		})
		r.Route("/submissions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSubmission)
			r.Get("/status", h.GetSubmissionStatus)
			r.Post("/evaluate", h.EvaluateSubmission)
			r.Post("/requeue", h.RequeueSubmissionStage)
		})
	})
}

func (h *ServiceHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch err.(type) {
	case *service.ErrResourceNotFound:
		status = http.StatusNotFound
	case *service.ErrDependencyNotReady:
		status = http.StatusConflict
	case *service.ErrIllegalRequeue, *service.ErrUnknownStage:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	render.Status(r, status)
	render.JSON(w, r, api.Error{Message: err.Error()})
}

func parseID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, fileMIME(header), nil
}

func fileMIME(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// (POST /api/v1alpha1/assignments)
func (h *ServiceHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: fmt.Sprintf("failed to parse multipart form: %v", err)})
		return
	}

	create := service.AssignmentCreate{Title: r.FormValue("title")}
	if tp := r.FormValue("totalPoints"); tp != "" {
		points, err := strconv.ParseFloat(tp, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, api.Error{Message: "totalPoints must be a number"})
			return
		}
		create.TotalPoints = &points
	}

	var err error
	if create.BriefFile, create.BriefMIME, err = readFormFile(r, "assignment"); err != nil {
		h.renderError(w, r, err)
		return
	}
	if len(create.BriefFile) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "assignment file is required"})
		return
	}
	if create.RubricFile, create.RubricMIME, err = readFormFile(r, "rubric"); err != nil {
		h.renderError(w, r, err)
		return
	}
	if create.SolutionFile, create.SolutionMIME, err = readFormFile(r, "solution"); err != nil {
		h.renderError(w, r, err)
		return
	}

	assignment, err := h.assignmentSrv.Create(r.Context(), create)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, assignmentToApi(assignment))
}

// (GET /api/v1alpha1/assignments)
func (h *ServiceHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.assignmentSrv.List(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	out := make(api.AssignmentList, 0, len(assignments))
	for i := range assignments {
		out = append(out, assignmentToApi(&assignments[i]))
	}
	render.JSON(w, r, out)
}

// (GET /api/v1alpha1/assignments/{id})
func (h *ServiceHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid assignment id"})
		return
	}
	assignment, err := h.assignmentSrv.Get(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, assignmentToApi(assignment))
}

// (GET /api/v1alpha1/assignments/{id}/status)
func (h *ServiceHandler) GetAssignmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid assignment id"})
		return
	}
	status, err := h.assignmentSrv.GetStatus(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, status)
}

// (GET /api/v1alpha1/assignments/{id}/table)
func (h *ServiceHandler) GetAssignmentTable(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid assignment id"})
		return
	}
	table, err := h.exportSrv.BuildTable(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, table)
}

// (GET /api/v1alpha1/assignments/{id}/export)
func (h *ServiceHandler) ExportAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid assignment id"})
		return
	}
	table, err := h.exportSrv.BuildTable(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("grades-%s.xlsx", id)))
	if err := h.exportSrv.WriteXLSX(w, table); err != nil {
		h.log.Errorf("writing workbook for assignment %s: %v", id, err)
	}
}

// (POST /api/v1alpha1/assignments/{id}/requeue)
func (h *ServiceHandler) RequeueAssignmentStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid assignment id"})
		return
	}
	var req api.EnqueueRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid request body"})
		return
	}
	if err := h.assignmentSrv.RequeueStage(r.Context(), id, req.Stage); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, api.EnqueueReply{Status: "requeued"})
}

// (POST /api/v1alpha1/assignments/{id}/orchestrate)
func (h *ServiceHandler) OrchestrateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid assignment id"})
		return
	}
	jobID, err := h.assignmentSrv.Orchestrate(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, api.EnqueueReply{JobID: jobID, Status: "queued"})
}

// (POST /api/v1alpha1/assignments/{id}/submissions)
func (h *ServiceHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid assignment id"})
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: fmt.Sprintf("failed to parse multipart form: %v", err)})
		return
	}

	create := service.SubmissionCreate{
		AssignmentID: assignmentID,
		StudentID:    r.FormValue("studentId"),
		StudentName:  r.FormValue("studentName"),
	}
	if create.File, create.FileMIME, err = readFormFile(r, "file"); err != nil {
		h.renderError(w, r, err)
		return
	}
	if len(create.File) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "submission file is required"})
		return
	}

	submission, err := h.submissionSrv.Create(r.Context(), create)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, submissionToApi(submission))
}

// (GET /api/v1alpha1/assignments/{id}/submissions)
func (h *ServiceHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid assignment id"})
		return
	}
	submissions, err := h.submissionSrv.List(r.Context(), assignmentID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	out := make(api.SubmissionList, 0, len(submissions))
	for i := range submissions {
		out = append(out, submissionToApi(&submissions[i]))
	}
	render.JSON(w, r, out)
}

// (GET /api/v1alpha1/submissions/{id})
func (h *ServiceHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid submission id"})
		return
	}
	submission, err := h.submissionSrv.Get(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, submissionToApi(submission))
}

// (GET /api/v1alpha1/submissions/{id}/status)
func (h *ServiceHandler) GetSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid submission id"})
		return
	}
	status, err := h.submissionSrv.GetStatus(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, status)
}

// (POST /api/v1alpha1/submissions/{id}/evaluate)
func (h *ServiceHandler) EvaluateSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid submission id"})
		return
	}
	jobID, err := h.submissionSrv.Evaluate(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, api.EnqueueReply{JobID: jobID, Status: "queued"})
}

// (POST /api/v1alpha1/submissions/{id}/requeue)
func (h *ServiceHandler) RequeueSubmissionStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid submission id"})
		return
	}
	var req api.EnqueueRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, api.Error{Message: "invalid request body"})
		return
	}
	if err := h.submissionSrv.RequeueStage(r.Context(), id, req.Stage); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, api.EnqueueReply{Status: "requeued"})
}

func assignmentToApi(a *model.Assignment) api.Assignment {
	return api.Assignment{
		ID:          a.ID,
		Title:       a.Title,
		TotalPoints: a.TotalPoints,
		Readiness:   api.StringToReadiness(a.Readiness),
		CreatedAt:   a.CreatedAt,
	}
}

func submissionToApi(s *model.Submission) api.Submission {
	return api.Submission{
		ID:            s.ID,
		AssignmentID:  s.AssignmentID,
		StudentID:     s.StudentID,
		StudentName:   s.StudentName,
		TotalScore:    s.TotalScore,
		TotalPossible: s.TotalPossible,
		Feedback:      s.Feedback,
		CreatedAt:     s.CreatedAt,
	}
}
