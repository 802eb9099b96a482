package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"peerworkshop/backend/internal/dto"
	"peerworkshop/backend/internal/service"
	pkgerrors "peerworkshop/backend/pkg/errors"
	"peerworkshop/backend/pkg/response"
)

// AssessmentHandler 评审模块 HTTP 处理器
type AssessmentHandler struct {
	assessmentSvc service.AssessmentService
	allocationSvc service.AllocationService
}

// NewAssessmentHandler 创建 AssessmentHandler
func NewAssessmentHandler(assessmentSvc service.AssessmentService, allocationSvc service.AllocationService) *AssessmentHandler {
	return &AssessmentHandler{assessmentSvc: assessmentSvc, allocationSvc: allocationSvc}
}

// AddAllocation 分配评审（教师）
// POST /api/v1/allocations
func (h *AssessmentHandler) AddAllocation(c *gin.Context) {
	var req dto.AddAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	weight := 1
	if req.Weight != nil {
		weight = *req.Weight
	}

	id, err := h.allocationSvc.AddAllocation(c.Request.Context(), req.SubmissionID, req.ReviewerID, weight)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Created(c, gin.H{"assessment_id": id})
}

// DeleteAllocations 批量删除评审（教师）
// DELETE /api/v1/allocations
func (h *AssessmentHandler) DeleteAllocations(c *gin.Context) {
	var req dto.DeleteAllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.allocationSvc.DeleteAssessments(c.Request.Context(), req.AssessmentIDs); err != nil {
		h.handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// Get 查询评审
// GET /api/v1/assessments/:id
func (h *AssessmentHandler) Get(c *gin.Context) {
	result, err := h.assessmentSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// ListBySubmission 提交收到的评审列表
// GET /api/v1/submissions/:id/assessments
func (h *AssessmentHandler) ListBySubmission(c *gin.Context) {
	result, err := h.assessmentSvc.ListBySubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// SaveGrade 保存评分表单（按工作坊评分策略计算原始成绩）
// PUT /api/v1/assessments/:id/grade
func (h *AssessmentHandler) SaveGrade(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var req dto.SaveAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.assessmentSvc.SaveGrade(c.Request.Context(), c.Param("id"), &req, userID, canOverride(role))
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.OK(c, result)
}

// Flag 提交作者申诉某条评审
// POST /api/v1/assessments/:id/flag
func (h *AssessmentHandler) Flag(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.assessmentSvc.Flag(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// ResolveFlag 教师处理申诉
// POST /api/v1/assessments/:id/resolve-flag
func (h *AssessmentHandler) ResolveFlag(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ResolveFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.assessmentSvc.ResolveFlag(c.Request.Context(), c.Param("id"), &req, userID); err != nil {
		h.handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// OverrideGradingGrade 教师覆写评审质量分；null 撤销覆写
// PUT /api/v1/assessments/:id/grading-grade
func (h *AssessmentHandler) OverrideGradingGrade(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.OverrideGradingGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.assessmentSvc.OverrideGradingGrade(c.Request.Context(), c.Param("id"), &req, userID); err != nil {
		h.handleError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *AssessmentHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrAllocationExists):
		response.Conflict(c, 14001, "该评审人已被分配到此提交")
	case errors.Is(err, service.ErrAssessmentNotFound):
		response.NotFound(c, 14002, "评审记录不存在")
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.NotFound(c, 13001, "提交不存在")
	case errors.Is(err, service.ErrReviewerIsAuthor):
		response.BadRequest(c, 14003, "评审人不能评审自己的提交")
	case errors.Is(err, service.ErrReferenceExists):
		response.Conflict(c, 14004, "该示例已有参考评审")
	case errors.Is(err, service.ErrAssessingNotAllowed):
		response.Forbidden(c, 14005, "当前阶段或时间窗口不允许评分")
	case errors.Is(err, service.ErrNotAssessmentOwner):
		response.Forbidden(c, 14006, "只能填写分配给自己的评审")
	case errors.Is(err, service.ErrNotSubmissionAuthor):
		response.Forbidden(c, 14007, "只有提交作者可以申诉评审")
	case errors.Is(err, service.ErrFlagNotPending):
		response.BadRequest(c, 14008, "该评审没有待处理的申诉")
	case errors.Is(err, service.ErrStrategyUnknown):
		response.BadRequest(c, 14009, "未知的评分策略")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/assessment_handler.go
