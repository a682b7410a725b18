package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"questbudget/internal/advisor"
	"questbudget/internal/core"
	"questbudget/internal/services"
	"questbudget/internal/storage"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- auth ---

type credentialsIn struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) signup(c *gin.Context) {
	var in credentialsIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := s.auth.Signup(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (s *Server) login(c *gin.Context) {
	var in credentialsIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := s.auth.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// --- month ---

type monthStartIn struct {
	Income float64 `json:"income"`
	Ratio  float64 `json:"ratio"`
	Year   int     `json:"year"`
	Month  int     `json:"month"`
}

func (s *Server) monthStart(c *gin.Context) {
	var in monthStartIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := s.months.StartMonth(c.Request.Context(), currentUserID(c), in.Year, in.Month, in.Income, in.Ratio)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) monthState(c *gin.Context) {
	state, err := s.months.CurrentState(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// --- tasks ---

type templateIn struct {
	Title        string          `json:"title" binding:"required"`
	Category     string          `json:"category"`
	Difficulty   string          `json:"difficulty" binding:"required"`
	EXPValue     *int            `json:"exp_value"`
	ScheduleType string          `json:"schedule_type" binding:"required"`
	ScheduleMeta json.RawMessage `json:"schedule_meta"`
	Active       *bool           `json:"active"`
}

type templateOut struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Category     string          `json:"category"`
	Difficulty   string          `json:"difficulty"`
	EXPValue     int             `json:"exp_value"`
	ScheduleType string          `json:"schedule_type"`
	ScheduleMeta json.RawMessage `json:"schedule_meta"`
	Active       bool            `json:"active"`
}

func toTemplateOut(t core.TaskTemplate) templateOut {
	out := templateOut{
		ID:         t.ID,
		Title:      t.Title,
		Category:   t.Category,
		Difficulty: string(t.Difficulty),
		EXPValue:   t.EXPValue,
		Active:     t.Active,
	}
	if t.Schedule != nil {
		out.ScheduleType = string(t.Schedule.Type())
		if meta := t.Schedule.Meta(); meta != "" {
			out.ScheduleMeta = json.RawMessage(meta)
		}
	}
	return out
}

func (s *Server) createTemplate(c *gin.Context) {
	var in templateIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	tpl, err := s.tasks.CreateTemplate(c.Request.Context(), currentUserID(c), services.TemplateInput{
		Title:        in.Title,
		Category:     in.Category,
		Difficulty:   core.Difficulty(in.Difficulty),
		EXPValue:     in.EXPValue,
		ScheduleType: in.ScheduleType,
		ScheduleMeta: in.ScheduleMeta,
		Active:       active,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTemplateOut(tpl))
}

func (s *Server) generateTasks(c *gin.Context) {
	date := c.Query("date")
	created, err := s.tasks.Generate(c.Request.Context(), currentUserID(c), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "created": created})
}

type instanceOut struct {
	ID             int64      `json:"id"`
	TemplateID     int64      `json:"template_id"`
	Date           string     `json:"date"`
	Status         string     `json:"status"`
	CompletionNote string     `json:"completion_note"`
	CompletedAt    *time.Time `json:"completed_at"`
	Title          string     `json:"title"`
	Category       string     `json:"category"`
	Difficulty     string     `json:"difficulty"`
	EXPValue       int        `json:"exp_value"`
}

func (s *Server) listInstances(c *gin.Context) {
	rows, err := s.tasks.ListInstances(c.Request.Context(), storage.ListInstancesParams{
		UserID:     currentUserID(c),
		Date:       c.Query("date"),
		Status:     c.Query("status"),
		Difficulty: c.Query("difficulty"),
		Category:   c.Query("category"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]instanceOut, 0, len(rows))
	for _, r := range rows {
		out = append(out, instanceOut{
			ID:             r.ID,
			TemplateID:     r.TemplateID,
			Date:           r.Date,
			Status:         string(r.Status),
			CompletionNote: r.CompletionNote,
			CompletedAt:    r.CompletedAt,
			Title:          r.Title,
			Category:       r.Category,
			Difficulty:     string(r.Difficulty),
			EXPValue:       r.EXPValue,
		})
	}
	c.JSON(http.StatusOK, out)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type completeIn struct {
	Note string `json:"note"`
}

func (s *Server) completeInstance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in completeIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inst, awarded, err := s.tasks.Complete(c.Request.Context(), currentUserID(c), id, in.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          inst.ID,
		"status":      string(inst.Status),
		"awarded_exp": awarded,
	})
}

func (s *Server) skipInstance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	inst, err := s.tasks.Skip(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": inst.ID, "status": string(inst.Status)})
}

// --- shop ---

type shopItemIn struct {
	Name      string  `json:"name" binding:"required"`
	Tier      int     `json:"tier" binding:"required"`
	EXPCost   *int    `json:"exp_cost"`
	CashPrice float64 `json:"cash_price"`
	Category  string  `json:"category"`
	Active    *bool   `json:"active"`
}

type shopItemOut struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Tier      int     `json:"tier"`
	EXPCost   int     `json:"exp_cost"`
	CashPrice float64 `json:"cash_price"`
	Category  string  `json:"category"`
	Active    bool    `json:"active"`
}

func toShopItemOut(i core.ShopItem) shopItemOut {
	return shopItemOut{
		ID:        i.ID,
		Name:      i.Name,
		Tier:      i.Tier,
		EXPCost:   i.EXPCost,
		CashPrice: i.CashPrice,
		Category:  i.Category,
		Active:    i.Active,
	}
}

func (s *Server) createShopItem(c *gin.Context) {
	var in shopItemIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	item, err := s.shop.CreateItem(c.Request.Context(), currentUserID(c), services.ItemInput{
		Name:      in.Name,
		Tier:      in.Tier,
		EXPCost:   in.EXPCost,
		CashPrice: in.CashPrice,
		Category:  in.Category,
		Active:    active,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toShopItemOut(item))
}

func (s *Server) listShopItems(c *gin.Context) {
	items, err := s.shop.ListItems(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]shopItemOut, 0, len(items))
	for _, item := range items {
		out = append(out, toShopItemOut(item))
	}
	c.JSON(http.StatusOK, out)
}

type purchaseOut struct {
	ID          int64     `json:"id"`
	MonthID     int64     `json:"month_id"`
	ItemID      int64     `json:"item_id"`
	EXPSpent    float64   `json:"exp_spent"`
	CashSpent   float64   `json:"cash_spent"`
	PurchasedAt time.Time `json:"purchased_at"`
}

func (s *Server) purchase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	userID := currentUserID(c)
	p, err := s.shop.Purchase(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	state, err := s.months.CurrentState(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"purchase": purchaseOut{
			ID:          p.ID,
			MonthID:     p.MonthID,
			ItemID:      p.ItemID,
			EXPSpent:    p.EXPSpent,
			CashSpent:   p.CashSpent,
			PurchasedAt: p.PurchasedAt,
		},
		"month_state": state,
	})
}

// --- chat ---

type chatMessageIn struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) chatMessage(c *gin.Context) {
	var in chatMessageIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chatCtx, err := s.contexts.Build(c.Request.Context(), currentUserID(c), "")
	if err != nil {
		writeError(c, err)
		return
	}
	s.answer(c, chatCtx, in.Message)
}

type spendAdviceIn struct {
	ItemID int64 `json:"item_id" binding:"required"`
}

func (s *Server) chatSpendAdvice(c *gin.Context) {
	var in spendAdviceIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := currentUserID(c)

	item, err := s.shop.GetItem(c.Request.Context(), userID, in.ItemID)
	if err != nil {
		writeError(c, err)
		return
	}
	chatCtx, err := s.contexts.Build(c.Request.Context(), userID, "")
	if err != nil {
		writeError(c, err)
		return
	}
	chatCtx.SelectedItem = &services.SuggestedItem{
		ID:        item.ID,
		Name:      item.Name,
		Tier:      item.Tier,
		EXPCost:   item.EXPCost,
		CashPrice: item.CashPrice,
		Category:  item.Category,
	}
	s.answer(c, chatCtx, "Should I buy this item now?")
}

func (s *Server) answer(c *gin.Context, chatCtx services.ChatContext, message string) {
	contextJSON, err := json.MarshalIndent(chatCtx, "", "  ")
	if err != nil {
		writeError(c, err)
		return
	}
	prompt := advisor.BuildPrompt(contextJSON, message)
	c.JSON(http.StatusOK, gin.H{"response": s.coach.Chat(c.Request.Context(), prompt)})
}

// chatContext dumps the raw advisory context. Debug only; hidden unless
// explicitly enabled.
func (s *Server) chatContext(c *gin.Context) {
	if !s.debugChatContext {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	chatCtx, err := s.contexts.Build(c.Request.Context(), currentUserID(c), c.Query("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatCtx)
}
