package controller

import (
	"encoding/json"
	"io"
	"strconv"

	"kbot_backend/internal/service"
	"kbot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TeachController struct {
	engine   *service.TeachEngine
	importer *service.GraphImportService
}

func NewTeachController(engine *service.TeachEngine, importer *service.GraphImportService) *TeachController {
	return &TeachController{engine: engine, importer: importer}
}

type StartSessionRequest struct {
	ModuleID string `json:"moduleId"`
	Resume   *bool  `json:"resume"`
}

type StartSessionResponse struct {
	SessionID string                       `json:"sessionId"`
	State     string                       `json:"state"`
	Sequence  int64                        `json:"sequence"`
	Response  *service.InteractionResponse `json:"response"`
}

type InteractRequest struct {
	Input    string `json:"input"`
	Sequence int64  `json:"sequence"`
}

type ImportGraphRequest struct {
	ObjectName string `json:"objectName"`
}

// ListModules godoc
// @Summary 教学模块列表
// @Description 按拓扑序返回知识库的教学模块，带解锁和完成标记
// @Tags 教学
// @Produce json
// @Param kbId path string true "知识库ID"
// @Success 200 {object} util.Response{data=[]service.ModuleStatus}
// @Router /api/kb/{kbId}/teach/modules [get]
func (c *TeachController) ListModules(ctx *gin.Context) {
	modules, err := c.engine.ModuleStatuses(ctx.Request.Context(), ctx.Param("kbId"), util.RequestUserID(ctx))
	if err != nil {
		util.MapError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}

// StartSession godoc
// @Summary 创建教学会话
// @Description 不指定模块时从模块选择菜单开始；resume 默认开启，存在未结束会话时直接返回
// @Tags 教学
// @Accept json
// @Produce json
// @Param kbId path string true "知识库ID"
// @Param body body StartSessionRequest false "起始模块和续学开关"
// @Success 201 {object} util.Response{data=StartSessionResponse}
// @Router /api/kb/{kbId}/teach/sessions [post]
func (c *TeachController) StartSession(ctx *gin.Context) {
	userID := util.RequestUserID(ctx)

	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err != io.EOF {
		util.BadRequest(ctx, err.Error())
		return
	}
	resume := req.Resume == nil || *req.Resume

	sess, resp, err := c.engine.StartSession(ctx.Request.Context(), ctx.Param("kbId"), userID, req.ModuleID, resume)
	if err != nil {
		util.MapError(ctx, err)
		return
	}

	util.Created(ctx, StartSessionResponse{
		SessionID: sess.ID,
		State:     sess.State,
		Sequence:  sess.LastSequence,
		Response:  resp,
	})
}

// Interact godoc
// @Summary 处理一次教学交互
// @Description sequence 必须是下一个序列号；重发上一个序列号会拿到缓存的相同响应
// @Tags 教学
// @Accept json
// @Produce json
// @Param sessionId path string true "会话ID"
// @Param body body InteractRequest true "用户输入和期望序列号"
// @Success 200 {object} util.Response{data=service.InteractionResponse}
// @Router /api/teach/sessions/{sessionId}/interactions [post]
func (c *TeachController) Interact(ctx *gin.Context) {
	var req InteractRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.engine.ProcessInteraction(ctx.Request.Context(), ctx.Param("sessionId"), util.RequestUserID(ctx), req.Input, req.Sequence)
	if err != nil {
		util.MapError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}

// GetSession godoc
// @Summary 会话进度摘要
// @Tags 教学
// @Produce json
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionProgress}
// @Router /api/teach/sessions/{sessionId} [get]
func (c *TeachController) GetSession(ctx *gin.Context) {
	progress, err := c.engine.Progress(ctx.Request.Context(), ctx.Param("sessionId"), util.RequestUserID(ctx))
	if err != nil {
		util.MapError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// ListInteractions godoc
// @Summary 会话交互流水
// @Description 追加写入的审计流水，按序列号升序分页返回
// @Tags 教学
// @Produce json
// @Param sessionId path string true "会话ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(50)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/teach/sessions/{sessionId}/interactions [get]
func (c *TeachController) ListInteractions(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	records, total, err := c.engine.Interactions(ctx.Request.Context(), ctx.Param("sessionId"), util.RequestUserID(ctx), page, limit)
	if err != nil {
		util.MapError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  records,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// AbandonSession godoc
// @Summary 放弃会话
// @Description 会话进入终态但保留，进度仍可查询
// @Tags 教学
// @Produce json
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/teach/sessions/{sessionId}/abandon [post]
func (c *TeachController) AbandonSession(ctx *gin.Context) {
	if err := c.engine.Abandon(ctx.Request.Context(), ctx.Param("sessionId"), util.RequestUserID(ctx)); err != nil {
		util.MapError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"state": "abandoned"})
}

// ImportGraph godoc
// @Summary 导入教学图谱制品
// @Description 请求体直接携带JSON/YAML制品，或给出存储后端的对象名；校验失败不落库
// @Tags 管理
// @Accept json
// @Produce json
// @Param kbId path string true "知识库ID"
// @Success 200 {object} util.Response
// @Router /api/admin/kb/{kbId}/graph [post]
func (c *TeachController) ImportGraph(ctx *gin.Context) {
	kbID := ctx.Param("kbId")

	// 对象名导入和内联制品二选一，按 Content-Type 区分
	contentType := ctx.ContentType()
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var graph *service.ModuleGraph
	switch contentType {
	case util.MimeYAML, "text/yaml":
		graph, err = c.importer.Import(ctx.Request.Context(), kbID, body, "yaml")
	default:
		var ref ImportGraphRequest
		if jsonErr := json.Unmarshal(body, &ref); jsonErr == nil && ref.ObjectName != "" {
			graph, err = c.importer.ImportFromStorage(ctx.Request.Context(), kbID, ref.ObjectName)
		} else {
			graph, err = c.importer.Import(ctx.Request.Context(), kbID, body, "json")
		}
	}
	if err != nil {
		util.MapError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"version": graph.Version,
		"modules": len(graph.Modules),
	})
}
