package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"questbudget/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same query set
// serves plain reads and units of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns the query set bound to an open transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ErrNotFound is returned when a row does not exist or belongs to
// another user. Callers translate it into their own taxonomy.
var ErrNotFound = sql.ErrNoRows

// --- users ---

func (q *Queries) CreateUser(ctx context.Context, email, passwordHash string) (core.User, error) {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)`,
		email, passwordHash, now)
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user insert id: %w", err)
	}
	return core.User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var u core.User
	err := q.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := q.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

// --- settings ---

func (q *Queries) CreateSettings(ctx context.Context, s core.Settings) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO settings (user_id, easy_exp, med_exp, hard_exp, tier_low, tier_mid, tier_high)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.UserID, s.EasyEXP, s.MedEXP, s.HardEXP, s.TierLow, s.TierMid, s.TierHigh)
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	return nil
}

func (q *Queries) GetSettings(ctx context.Context, userID int64) (core.Settings, error) {
	var s core.Settings
	err := q.db.QueryRowContext(ctx,
		`SELECT user_id, easy_exp, med_exp, hard_exp, tier_low, tier_mid, tier_high
		 FROM settings WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.EasyEXP, &s.MedEXP, &s.HardEXP, &s.TierLow, &s.TierMid, &s.TierHigh)
	if err != nil {
		return core.Settings{}, err
	}
	return s, nil
}

// --- months ---

const monthColumns = `id, user_id, year, month, income, ratio, needs_planned,
	savings_planned, pool_total, cash_spent, exp_earned, exp_redeemed, savings_actual`

func scanMonth(row *sql.Row) (core.LedgerMonth, error) {
	var m core.LedgerMonth
	err := row.Scan(&m.ID, &m.UserID, &m.Year, &m.Month, &m.Income, &m.Ratio,
		&m.NeedsPlanned, &m.SavingsPlanned, &m.PoolTotal,
		&m.CashSpent, &m.EXPEarned, &m.EXPRedeemed, &m.SavingsActual)
	return m, err
}

func (q *Queries) GetMonth(ctx context.Context, userID int64, year, month int) (core.LedgerMonth, error) {
	return scanMonth(q.db.QueryRowContext(ctx,
		`SELECT `+monthColumns+` FROM months WHERE user_id = ? AND year = ? AND month = ?`,
		userID, year, month))
}

func (q *Queries) GetMonthByID(ctx context.Context, id int64) (core.LedgerMonth, error) {
	return scanMonth(q.db.QueryRowContext(ctx,
		`SELECT `+monthColumns+` FROM months WHERE id = ?`, id))
}

func (q *Queries) CreateMonth(ctx context.Context, m core.LedgerMonth) (core.LedgerMonth, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO months (user_id, year, month, income, ratio, needs_planned,
		   savings_planned, pool_total, cash_spent, exp_earned, exp_redeemed, savings_actual)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UserID, m.Year, m.Month, m.Income, m.Ratio, m.NeedsPlanned,
		m.SavingsPlanned, m.PoolTotal, m.CashSpent, m.EXPEarned, m.EXPRedeemed, m.SavingsActual)
	if err != nil {
		return core.LedgerMonth{}, fmt.Errorf("insert month: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return core.LedgerMonth{}, fmt.Errorf("month insert id: %w", err)
	}
	return m, nil
}

// UpdateMonthPlan re-plans a month in place: income, ratio and the
// planned splits change, the running totals do not.
func (q *Queries) UpdateMonthPlan(ctx context.Context, id int64, income, ratio, needs, savings, pool float64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE months SET income = ?, ratio = ?, needs_planned = ?, savings_planned = ?, pool_total = ?
		 WHERE id = ?`,
		income, ratio, needs, savings, pool, id)
	if err != nil {
		return fmt.Errorf("update month plan: %w", err)
	}
	return nil
}

func (q *Queries) SetMonthEXPEarned(ctx context.Context, id int64, expEarned float64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE months SET exp_earned = ? WHERE id = ?`, expEarned, id)
	if err != nil {
		return fmt.Errorf("update month exp earned: %w", err)
	}
	return nil
}

// ApplyPurchaseTotals moves both balances together; settlement is the
// only caller.
func (q *Queries) ApplyPurchaseTotals(ctx context.Context, id int64, expRedeemed, cashSpent float64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE months SET exp_redeemed = ?, cash_spent = ? WHERE id = ?`,
		expRedeemed, cashSpent, id)
	if err != nil {
		return fmt.Errorf("update month purchase totals: %w", err)
	}
	return nil
}

// --- task templates ---

func (q *Queries) CreateTemplate(ctx context.Context, t core.TaskTemplate) (core.TaskTemplate, error) {
	meta := ""
	schedType := ""
	if t.Schedule != nil {
		meta = t.Schedule.Meta()
		schedType = string(t.Schedule.Type())
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO task_templates (user_id, title, category, difficulty, exp_value,
		   schedule_type, schedule_meta, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Title, t.Category, string(t.Difficulty), t.EXPValue,
		schedType, meta, t.Active)
	if err != nil {
		return core.TaskTemplate{}, fmt.Errorf("insert template: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return core.TaskTemplate{}, fmt.Errorf("template insert id: %w", err)
	}
	return t, nil
}

func scanTemplate(scan func(...any) error) (core.TaskTemplate, error) {
	var (
		t          core.TaskTemplate
		difficulty string
		schedType  string
		schedMeta  string
	)
	err := scan(&t.ID, &t.UserID, &t.Title, &t.Category, &difficulty,
		&t.EXPValue, &schedType, &schedMeta, &t.Active)
	if err != nil {
		return core.TaskTemplate{}, err
	}
	t.Difficulty = core.Difficulty(difficulty)
	// Malformed rows keep a nil schedule and never match.
	t.Schedule, _ = core.LoadSchedule(schedType, schedMeta)
	return t, nil
}

const templateColumns = `id, user_id, title, category, difficulty, exp_value,
	schedule_type, schedule_meta, active`

func (q *Queries) GetTemplate(ctx context.Context, userID, id int64) (core.TaskTemplate, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM task_templates WHERE user_id = ? AND id = ?`,
		userID, id)
	return scanTemplate(row.Scan)
}

func (q *Queries) ListActiveTemplates(ctx context.Context, userID int64) ([]core.TaskTemplate, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM task_templates WHERE user_id = ? AND active = 1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	defer rows.Close()

	var templates []core.TaskTemplate
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// --- task instances ---

// CreateInstanceIfAbsent inserts a pending instance unless one already
// exists for (user, template, date). Reports whether a row was created,
// which is what makes generation idempotent.
func (q *Queries) CreateInstanceIfAbsent(ctx context.Context, userID, templateID int64, date string) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO task_instances (user_id, template_id, date, status)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, template_id, date) DO NOTHING`,
		userID, templateID, date, string(core.StatusPending))
	if err != nil {
		return false, fmt.Errorf("insert instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("instance rows affected: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) GetInstance(ctx context.Context, userID, id int64) (core.TaskInstance, error) {
	var (
		i           core.TaskInstance
		status      string
		note        sql.NullString
		completedAt sql.NullTime
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, template_id, date, status, completion_note, completed_at
		 FROM task_instances WHERE user_id = ? AND id = ?`, userID, id).
		Scan(&i.ID, &i.UserID, &i.TemplateID, &i.Date, &status, &note, &completedAt)
	if err != nil {
		return core.TaskInstance{}, err
	}
	i.Status = core.InstanceStatus(status)
	i.CompletionNote = note.String
	if completedAt.Valid {
		t := completedAt.Time
		i.CompletedAt = &t
	}
	return i, nil
}

// InstanceWithTemplate joins an instance with the template fields the
// listing API exposes.
type InstanceWithTemplate struct {
	core.TaskInstance
	Title      string
	Category   string
	Difficulty core.Difficulty
	EXPValue   int
}

// ListInstancesParams filters the joined instance listing. Empty filter
// fields are ignored.
type ListInstancesParams struct {
	UserID     int64
	Date       string
	Status     string
	Difficulty string
	Category   string
}

func (q *Queries) ListInstances(ctx context.Context, p ListInstancesParams) ([]InstanceWithTemplate, error) {
	query := `SELECT i.id, i.user_id, i.template_id, i.date, i.status, i.completion_note,
		i.completed_at, t.title, t.category, t.difficulty, t.exp_value
		FROM task_instances i
		JOIN task_templates t ON i.template_id = t.id
		WHERE i.user_id = ? AND i.date = ?`
	args := []any{p.UserID, p.Date}

	if p.Status != "" {
		query += ` AND i.status = ?`
		args = append(args, p.Status)
	}
	if p.Difficulty != "" {
		query += ` AND t.difficulty = ?`
		args = append(args, p.Difficulty)
	}
	if p.Category != "" {
		query += ` AND t.category = ?`
		args = append(args, p.Category)
	}
	query += ` ORDER BY i.id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []InstanceWithTemplate
	for rows.Next() {
		var (
			r           InstanceWithTemplate
			status      string
			difficulty  string
			note        sql.NullString
			completedAt sql.NullTime
		)
		err := rows.Scan(&r.ID, &r.UserID, &r.TemplateID, &r.Date, &status, &note,
			&completedAt, &r.Title, &r.Category, &difficulty, &r.EXPValue)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		r.Status = core.InstanceStatus(status)
		r.Difficulty = core.Difficulty(difficulty)
		r.CompletionNote = note.String
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) CompleteInstance(ctx context.Context, id int64, note string, completedAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE task_instances SET status = ?, completion_note = ?, completed_at = ? WHERE id = ?`,
		string(core.StatusCompleted), note, completedAt, id)
	if err != nil {
		return fmt.Errorf("complete instance: %w", err)
	}
	return nil
}

func (q *Queries) SkipInstance(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE task_instances SET status = ? WHERE id = ?`,
		string(core.StatusSkipped), id)
	if err != nil {
		return fmt.Errorf("skip instance: %w", err)
	}
	return nil
}

// --- shop items ---

func (q *Queries) CreateShopItem(ctx context.Context, i core.ShopItem) (core.ShopItem, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO shop_items (user_id, name, tier, exp_cost, cash_price, category, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.UserID, i.Name, i.Tier, i.EXPCost, i.CashPrice, i.Category, i.Active)
	if err != nil {
		return core.ShopItem{}, fmt.Errorf("insert shop item: %w", err)
	}
	i.ID, err = res.LastInsertId()
	if err != nil {
		return core.ShopItem{}, fmt.Errorf("shop item insert id: %w", err)
	}
	return i, nil
}

const shopItemColumns = `id, user_id, name, tier, exp_cost, cash_price, category, active`

func (q *Queries) GetShopItem(ctx context.Context, userID, id int64) (core.ShopItem, error) {
	var i core.ShopItem
	err := q.db.QueryRowContext(ctx,
		`SELECT `+shopItemColumns+` FROM shop_items WHERE user_id = ? AND id = ?`,
		userID, id).
		Scan(&i.ID, &i.UserID, &i.Name, &i.Tier, &i.EXPCost, &i.CashPrice, &i.Category, &i.Active)
	if err != nil {
		return core.ShopItem{}, err
	}
	return i, nil
}

func (q *Queries) ListShopItems(ctx context.Context, userID int64) ([]core.ShopItem, error) {
	return q.listShopItems(ctx,
		`SELECT `+shopItemColumns+` FROM shop_items WHERE user_id = ? ORDER BY id`, userID)
}

func (q *Queries) ListActiveShopItems(ctx context.Context, userID int64, limit int) ([]core.ShopItem, error) {
	return q.listShopItems(ctx,
		`SELECT `+shopItemColumns+` FROM shop_items WHERE user_id = ? AND active = 1 ORDER BY id LIMIT ?`,
		userID, limit)
}

func (q *Queries) listShopItems(ctx context.Context, query string, args ...any) ([]core.ShopItem, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shop items: %w", err)
	}
	defer rows.Close()

	var items []core.ShopItem
	for rows.Next() {
		var i core.ShopItem
		err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.Tier, &i.EXPCost, &i.CashPrice, &i.Category, &i.Active)
		if err != nil {
			return nil, fmt.Errorf("scan shop item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// --- purchases ---

func (q *Queries) CreatePurchase(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO purchases (user_id, month_id, item_id, exp_spent, cash_spent, purchased_at, exported)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		p.UserID, p.MonthID, p.ItemID, p.EXPSpent, p.CashSpent, p.PurchasedAt)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("insert purchase: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return core.Purchase{}, fmt.Errorf("purchase insert id: %w", err)
	}
	return p, nil
}

// Receipt is the purchase joined with its item, as exported downstream.
type Receipt struct {
	PurchaseID  int64
	UserID      int64
	Year        int
	Month       int
	ItemName    string
	Tier        int
	Category    string
	EXPSpent    float64
	CashSpent   float64
	PurchasedAt time.Time
}

const receiptQuery = `SELECT p.id, p.user_id, m.year, m.month, s.name, s.tier, s.category,
	p.exp_spent, p.cash_spent, p.purchased_at
	FROM purchases p
	JOIN months m ON p.month_id = m.id
	JOIN shop_items s ON p.item_id = s.id`

func scanReceipt(scan func(...any) error) (Receipt, error) {
	var r Receipt
	err := scan(&r.PurchaseID, &r.UserID, &r.Year, &r.Month, &r.ItemName, &r.Tier,
		&r.Category, &r.EXPSpent, &r.CashSpent, &r.PurchasedAt)
	return r, err
}

func (q *Queries) GetReceipt(ctx context.Context, purchaseID int64) (Receipt, error) {
	row := q.db.QueryRowContext(ctx, receiptQuery+` WHERE p.id = ?`, purchaseID)
	return scanReceipt(row.Scan)
}

// ListUnexportedReceipts returns receipts not yet exported, oldest first.
func (q *Queries) ListUnexportedReceipts(ctx context.Context, limit int) ([]Receipt, error) {
	rows, err := q.db.QueryContext(ctx,
		receiptQuery+` WHERE p.exported = 0 ORDER BY p.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported receipts: %w", err)
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		r, err := scanReceipt(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func (q *Queries) MarkPurchaseExported(ctx context.Context, purchaseID int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE purchases SET exported = 1 WHERE id = ?`, purchaseID)
	if err != nil {
		return fmt.Errorf("mark purchase exported: %w", err)
	}
	return nil
}
