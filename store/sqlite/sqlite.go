/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  One Store implements every persistence interface the engine defines.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  adjust.Repository:   Adjustment workflow state
  adjust.AuditLog:     Append-only transition trail
  audit.RunRepository: Audit run bookkeeping
  audit.ReportStore:   Per-run results and variance items
  report.SummaryStore: Per-run agent summaries

APPEND-ONLY ENFORCEMENT:
  The adjustment trail is append-only:
  - No UPDATE statements on adjustment_log
  - No DELETE statements on adjustment_log (Reset excepted)
  - Corrections arrive as new adjustments, never as edits

KEY TABLES:
  plans:               Commission plan configs (factory JSON, versioned)
  plan_assignments:    Agent-to-plan links with effective dates
  teams:               Team split overrides
  transaction_records: The normalized feed being audited
  adjustments:         Workflow state per adjustment
  adjustment_log:      Immutable transition trail
  audit_runs:          One row per executed batch
  audit_results:       Per-run record outcomes, ordered
  audit_variances:     Per-run coarse variance items, ordered
  agent_summaries:     Per-run agent period rollups, ordered

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/commission.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  service := adjust.NewService(store, store)
  runner := audit.NewRunner(&audit.Engine{}, store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - adjust/repo.go: Interface definitions for the workflow
  - audit/runner.go: Interface definitions for runs
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/brokerops/commission-engine/adjust"
	"github.com/brokerops/commission-engine/audit"
	"github.com/brokerops/commission-engine/commission"
	"github.com/brokerops/commission-engine/report"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Commission plans (factory JSON configs, versioned)
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Plan assignments (agent -> plan, optional team)
	CREATE TABLE IF NOT EXISTS plan_assignments (
		id TEXT PRIMARY KEY,
		agent_name TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		team_id TEXT,
		effective_start TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_agent
		ON plan_assignments(agent_name);
	CREATE INDEX IF NOT EXISTS idx_assignments_plan
		ON plan_assignments(plan_id);

	-- Teams (split overrides)
	CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		lead_agent TEXT NOT NULL,
		lead_split_percentage TEXT NOT NULL,
		member_split_percentage TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Normalized transaction records (the audited feed)
	CREATE TABLE IF NOT EXISTS transaction_records (
		id TEXT PRIMARY KEY,
		agent_name TEXT NOT NULL,
		co_agents_json TEXT,
		sale_price INTEGER NOT NULL DEFAULT 0,
		commission_rate TEXT,
		gross_commission INTEGER NOT NULL,
		closing_date TEXT,
		reported_company_dollar INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_agent
		ON transaction_records(agent_name);
	CREATE INDEX IF NOT EXISTS idx_records_closing
		ON transaction_records(closing_date);

	-- Adjustment workflow state
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		record_id TEXT NOT NULL,
		agent_name TEXT,
		original_value INTEGER NOT NULL,
		adjusted_value INTEGER NOT NULL,
		adjustment_amount INTEGER NOT NULL,
		reason_code TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		approved_by TEXT,
		approved_at TEXT,
		reverted_by TEXT,
		reverted_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_record
		ON adjustments(record_id);
	CREATE INDEX IF NOT EXISTS idx_adjustments_status
		ON adjustments(status);

	-- CRITICAL: append-only transition trail; nothing in this package
	-- updates or deletes rows here outside Reset
	CREATE TABLE IF NOT EXISTS adjustment_log (
		id TEXT PRIMARY KEY,
		adjustment_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor TEXT NOT NULL,
		at TEXT NOT NULL,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_adjustment_log_adjustment
		ON adjustment_log(adjustment_id);

	-- Audit runs (one row per executed batch)
	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		error TEXT,
		total_records INTEGER DEFAULT 0,
		total_matches INTEGER DEFAULT 0,
		total_underpaid INTEGER DEFAULT 0,
		total_overpaid INTEGER DEFAULT 0,
		total_exact INTEGER DEFAULT 0,
		total_minor INTEGER DEFAULT 0,
		total_major INTEGER DEFAULT 0,
		total_unsequenced INTEGER DEFAULT 0,
		total_no_plan INTEGER DEFAULT 0
	);

	-- Per-run record outcomes; position preserves report order
	CREATE TABLE IF NOT EXISTS audit_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		record_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		actual_company_dollar INTEGER NOT NULL,
		expected_company_dollar INTEGER NOT NULL,
		difference INTEGER NOT NULL,
		status TEXT NOT NULL,
		breakdown_json TEXT,
		notes_json TEXT,
		PRIMARY KEY (run_id, position)
	);

	-- Per-run coarse variance items
	CREATE TABLE IF NOT EXISTS audit_variances (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		record_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		reported_commission INTEGER NOT NULL,
		naive_commission INTEGER NOT NULL,
		deviation_pct TEXT NOT NULL,
		no_baseline INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	-- Per-run agent period rollups
	CREATE TABLE IF NOT EXISTS agent_summaries (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		period_key TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		plan_id TEXT,
		transactions INTEGER NOT NULL DEFAULT 0,
		total_gci INTEGER NOT NULL DEFAULT 0,
		total_agent_net INTEGER NOT NULL DEFAULT 0,
		company_dollar_paid INTEGER NOT NULL DEFAULT 0,
		royalty_paid INTEGER NOT NULL DEFAULT 0,
		percent_to_cap TEXT NOT NULL DEFAULT '0',
		is_capped INTEGER NOT NULL DEFAULT 0,
		current_split TEXT NOT NULL DEFAULT '0',
		matches INTEGER NOT NULL DEFAULT 0,
		underpaid INTEGER NOT NULL DEFAULT 0,
		overpaid INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PLANS
// =============================================================================

// PlanRecord is a stored plan with its JSON config.
type PlanRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SavePlan saves a plan record, bumping the version on replace.
func (s *Store) SavePlan(ctx context.Context, plan PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO plans (id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			version = plans.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		plan.ID, plan.Name, plan.ConfigJSON, plan.Version, now, now,
	)
	return err
}

// GetPlan returns a plan by ID, or nil if not found.
func (s *Store) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p PlanRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM plans WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// ListPlans returns all plans.
func (s *Store) ListPlans(ctx context.Context) ([]PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM plans ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []PlanRecord
	for rows.Next() {
		var p PlanRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// DeletePlan removes a plan.
func (s *Store) DeletePlan(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM plans WHERE id = ?", id)
	return err
}

// =============================================================================
// PLAN ASSIGNMENTS
// =============================================================================

// AssignmentRecord links an agent to a plan from an effective date.
type AssignmentRecord struct {
	ID             string
	AgentName      string
	PlanID         string
	TeamID         string
	EffectiveStart time.Time
	CreatedAt      time.Time
}

// SaveAssignment saves an assignment record.
func (s *Store) SaveAssignment(ctx context.Context, a AssignmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO plan_assignments (id, agent_name, plan_id, team_id, effective_start, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_name = excluded.agent_name,
			plan_id = excluded.plan_id,
			team_id = excluded.team_id,
			effective_start = excluded.effective_start
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.AgentName, a.PlanID, nullString(a.TeamID),
		a.EffectiveStart.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListAssignments returns every assignment, oldest effective date first.
func (s *Store) ListAssignments(ctx context.Context) ([]AssignmentRecord, error) {
	return s.queryAssignments(ctx,
		"SELECT id, agent_name, plan_id, team_id, effective_start, created_at FROM plan_assignments ORDER BY effective_start, id",
	)
}

// GetAssignmentsByAgent returns one agent's assignment history.
func (s *Store) GetAssignmentsByAgent(ctx context.Context, agentName string) ([]AssignmentRecord, error) {
	return s.queryAssignments(ctx,
		"SELECT id, agent_name, plan_id, team_id, effective_start, created_at FROM plan_assignments WHERE agent_name = ? ORDER BY effective_start, id",
		agentName,
	)
}

func (s *Store) queryAssignments(ctx context.Context, query string, args ...any) ([]AssignmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []AssignmentRecord
	for rows.Next() {
		var a AssignmentRecord
		var teamID sql.NullString
		var effectiveStart, createdAt string
		if err := rows.Scan(&a.ID, &a.AgentName, &a.PlanID, &teamID, &effectiveStart, &createdAt); err != nil {
			return nil, err
		}
		a.TeamID = teamID.String
		a.EffectiveStart, _ = time.Parse(time.RFC3339, effectiveStart)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// DeleteAssignment removes an assignment.
func (s *Store) DeleteAssignment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM plan_assignments WHERE id = ?", id)
	return err
}

// =============================================================================
// TEAMS
// =============================================================================

// TeamRecord is a stored team split override.
type TeamRecord struct {
	ID                    string
	Name                  string
	LeadAgent             string
	LeadSplitPercentage   decimal.Decimal
	MemberSplitPercentage decimal.Decimal
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// SaveTeam saves a team record.
func (s *Store) SaveTeam(ctx context.Context, team TeamRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO teams (id, name, lead_agent, lead_split_percentage, member_split_percentage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			lead_agent = excluded.lead_agent,
			lead_split_percentage = excluded.lead_split_percentage,
			member_split_percentage = excluded.member_split_percentage,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		team.ID, team.Name, team.LeadAgent,
		team.LeadSplitPercentage.String(), team.MemberSplitPercentage.String(),
		now, now,
	)
	return err
}

// GetTeam returns a team by ID, or nil if not found.
func (s *Store) GetTeam(ctx context.Context, id string) (*TeamRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t TeamRecord
	var leadSplit, memberSplit, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, lead_agent, lead_split_percentage, member_split_percentage, created_at, updated_at FROM teams WHERE id = ?",
		id,
	).Scan(&t.ID, &t.Name, &t.LeadAgent, &leadSplit, &memberSplit, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.LeadSplitPercentage, _ = decimal.NewFromString(leadSplit)
	t.MemberSplitPercentage, _ = decimal.NewFromString(memberSplit)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &t, nil
}

// ListTeams returns all teams.
func (s *Store) ListTeams(ctx context.Context) ([]TeamRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, lead_agent, lead_split_percentage, member_split_percentage, created_at, updated_at FROM teams ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []TeamRecord
	for rows.Next() {
		var t TeamRecord
		var leadSplit, memberSplit, createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Name, &t.LeadAgent, &leadSplit, &memberSplit, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		t.LeadSplitPercentage, _ = decimal.NewFromString(leadSplit)
		t.MemberSplitPercentage, _ = decimal.NewFromString(memberSplit)
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// =============================================================================
// TRANSACTION RECORDS
// =============================================================================

// SaveTransaction saves one normalized record.
func (s *Store) SaveTransaction(ctx context.Context, rec commission.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveTransactionTx(ctx, s.db, rec)
}

// SaveTransactionBatch saves a feed batch atomically.
func (s *Store) SaveTransactionBatch(ctx context.Context, recs []commission.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, rec := range recs {
		if err := s.saveTransactionTx(ctx, sqlTx, rec); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) saveTransactionTx(ctx context.Context, db execer, rec commission.TransactionRecord) error {
	query := `
		INSERT INTO transaction_records (id, agent_name, co_agents_json, sale_price,
			commission_rate, gross_commission, closing_date, reported_company_dollar, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_name = excluded.agent_name,
			co_agents_json = excluded.co_agents_json,
			sale_price = excluded.sale_price,
			commission_rate = excluded.commission_rate,
			gross_commission = excluded.gross_commission,
			closing_date = excluded.closing_date,
			reported_company_dollar = excluded.reported_company_dollar
	`

	var coAgents *string
	if len(rec.CoAgents) > 0 {
		raw, err := json.Marshal(rec.CoAgents)
		if err != nil {
			return fmt.Errorf("failed to marshal co-agents: %w", err)
		}
		encoded := string(raw)
		coAgents = &encoded
	}

	var closing *string
	if rec.HasClosingDate() {
		c := rec.ClosingDate.UTC().Format(time.RFC3339)
		closing = &c
	}

	_, err := db.ExecContext(ctx, query,
		string(rec.ID), string(rec.AgentName), coAgents,
		int64(rec.SalePrice), rec.CommissionRate.String(),
		int64(rec.GrossCommission), closing, int64(rec.ReportedCompanyDollar),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetTransaction returns one record by ID, or nil if not found.
func (s *Store) GetTransaction(ctx context.Context, id string) (*commission.TransactionRecord, error) {
	recs, err := s.queryTransactions(ctx,
		"SELECT id, agent_name, co_agents_json, sale_price, commission_rate, gross_commission, closing_date, reported_company_dollar FROM transaction_records WHERE id = ?",
		id,
	)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// ListTransactions returns all records, closing date ascending with undated
// records last. This matches the order the engine replays them in.
func (s *Store) ListTransactions(ctx context.Context) ([]commission.TransactionRecord, error) {
	return s.queryTransactions(ctx,
		"SELECT id, agent_name, co_agents_json, sale_price, commission_rate, gross_commission, closing_date, reported_company_dollar FROM transaction_records ORDER BY closing_date IS NULL, closing_date, id",
	)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]commission.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []commission.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (commission.TransactionRecord, error) {
	var rec commission.TransactionRecord
	var id, agentName string
	var coAgents, rate, closing sql.NullString
	var salePrice, gross, reported int64

	if err := rows.Scan(&id, &agentName, &coAgents, &salePrice, &rate, &gross, &closing, &reported); err != nil {
		return commission.TransactionRecord{}, err
	}

	rec.ID = commission.RecordID(id)
	rec.AgentName = commission.AgentName(agentName)
	rec.SalePrice = commission.Cents(salePrice)
	rec.GrossCommission = commission.Cents(gross)
	rec.ReportedCompanyDollar = commission.Cents(reported)

	if coAgents.Valid && coAgents.String != "" {
		if err := json.Unmarshal([]byte(coAgents.String), &rec.CoAgents); err != nil {
			return commission.TransactionRecord{}, fmt.Errorf("failed to unmarshal co-agents: %w", err)
		}
	}
	if rate.Valid && rate.String != "" {
		rec.CommissionRate, _ = decimal.NewFromString(rate.String)
	}
	if closing.Valid {
		rec.ClosingDate, _ = time.Parse(time.RFC3339, closing.String)
	}
	return rec, nil
}

// =============================================================================
// ADJUSTMENTS (adjust.Repository)
// =============================================================================

// CreateAdjustment inserts a new adjustment.
func (s *Store) CreateAdjustment(ctx context.Context, adj *adjust.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO adjustments (id, record_id, agent_name, original_value, adjusted_value,
			adjustment_amount, reason_code, status, created_by, created_at,
			approved_by, approved_at, reverted_by, reverted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		adj.ID, string(adj.RecordID), string(adj.AgentName),
		int64(adj.OriginalValue), int64(adj.AdjustedValue), int64(adj.AdjustmentAmount),
		adj.ReasonCode, string(adj.Status), adj.CreatedBy,
		adj.CreatedAt.UTC().Format(time.RFC3339),
		adj.ApprovedBy, formatTimePtr(adj.ApprovedAt),
		adj.RevertedBy, formatTimePtr(adj.RevertedAt),
		adj.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("adjustment %s already exists", adj.ID)
	}
	return err
}

// GetAdjustment returns one adjustment by ID.
func (s *Store) GetAdjustment(ctx context.Context, id string) (*adjust.Adjustment, error) {
	adjs, err := s.queryAdjustments(ctx,
		selectAdjustment+" WHERE id = ?",
		id,
	)
	if err != nil {
		return nil, err
	}
	if len(adjs) == 0 {
		return nil, fmt.Errorf("adjustment %s: %w", id, adjust.ErrAdjustmentNotFound)
	}
	return adjs[0], nil
}

// ListAdjustments returns adjustments matching the filter, creation order.
func (s *Store) ListAdjustments(ctx context.Context, filter adjust.Filter) ([]*adjust.Adjustment, error) {
	query := selectAdjustment
	var conditions []string
	var args []any

	if filter.RecordID != "" {
		conditions = append(conditions, "record_id = ?")
		args = append(args, string(filter.RecordID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"

	return s.queryAdjustments(ctx, query, args...)
}

// UpdateAdjustmentStatus persists a status transition and its actor fields.
func (s *Store) UpdateAdjustmentStatus(ctx context.Context, adj *adjust.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE adjustments SET
			status = ?,
			approved_by = ?, approved_at = ?,
			reverted_by = ?, reverted_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		string(adj.Status),
		adj.ApprovedBy, formatTimePtr(adj.ApprovedAt),
		adj.RevertedBy, formatTimePtr(adj.RevertedAt),
		adj.UpdatedAt.UTC().Format(time.RFC3339),
		adj.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("adjustment %s: %w", adj.ID, adjust.ErrAdjustmentNotFound)
	}
	return nil
}

const selectAdjustment = `
	SELECT id, record_id, agent_name, original_value, adjusted_value,
		adjustment_amount, reason_code, status, created_by, created_at,
		approved_by, approved_at, reverted_by, reverted_at, updated_at
	FROM adjustments`

func (s *Store) queryAdjustments(ctx context.Context, query string, args ...any) ([]*adjust.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjs []*adjust.Adjustment
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjs = append(adjs, adj)
	}
	return adjs, rows.Err()
}

func scanAdjustment(rows *sql.Rows) (*adjust.Adjustment, error) {
	var adj adjust.Adjustment
	var recordID, agentName, status, createdAt, updatedAt string
	var original, adjusted, amount int64
	var approvedBy, approvedAt, revertedBy, revertedAt sql.NullString

	if err := rows.Scan(
		&adj.ID, &recordID, &agentName, &original, &adjusted, &amount,
		&adj.ReasonCode, &status, &adj.CreatedBy, &createdAt,
		&approvedBy, &approvedAt, &revertedBy, &revertedAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	adj.RecordID = commission.RecordID(recordID)
	adj.AgentName = commission.AgentName(agentName)
	adj.OriginalValue = commission.Cents(original)
	adj.AdjustedValue = commission.Cents(adjusted)
	adj.AdjustmentAmount = commission.Cents(amount)
	adj.Status = adjust.Status(status)
	adj.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	adj.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if approvedBy.Valid {
		adj.ApprovedBy = &approvedBy.String
	}
	adj.ApprovedAt = parseTimePtr(approvedAt)
	if revertedBy.Valid {
		adj.RevertedBy = &revertedBy.String
	}
	adj.RevertedAt = parseTimePtr(revertedAt)

	return &adj, nil
}

// =============================================================================
// ADJUSTMENT TRAIL (adjust.AuditLog)
// =============================================================================

// AppendEntry appends one transition entry. Entries are never updated.
func (s *Store) AppendEntry(ctx context.Context, entry adjust.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO adjustment_log (id, adjustment_id, action, actor, at, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.AdjustmentID, string(entry.Action), entry.Actor,
		entry.At.UTC().Format(time.RFC3339), nullString(entry.Details),
	)
	return err
}

// ListEntries returns one adjustment's trail, oldest first.
func (s *Store) ListEntries(ctx context.Context, adjustmentID string) ([]adjust.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, adjustment_id, action, actor, at, details FROM adjustment_log WHERE adjustment_id = ? ORDER BY at, rowid",
		adjustmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []adjust.LogEntry
	for rows.Next() {
		var e adjust.LogEntry
		var action, at string
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.AdjustmentID, &action, &e.Actor, &at, &details); err != nil {
			return nil, err
		}
		e.Action = adjust.Action(action)
		e.At, _ = time.Parse(time.RFC3339, at)
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// AUDIT RUNS (audit.RunRepository)
// =============================================================================

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, run *audit.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO audit_runs (id, status, started_at, completed_at, error,
			total_records, total_matches, total_underpaid, total_overpaid,
			total_exact, total_minor, total_major, total_unsequenced, total_no_plan)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Status),
		run.StartedAt.UTC().Format(time.RFC3339), formatTimePtr(run.CompletedAt),
		nullString(run.Error),
		run.Totals.Records, run.Totals.Matches, run.Totals.Underpaid, run.Totals.Overpaid,
		run.Totals.Exact, run.Totals.Minor, run.Totals.Major,
		run.Totals.Unsequenced, run.Totals.NoPlan,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	return err
}

// UpdateRun replaces a run's status, timing and totals.
func (s *Store) UpdateRun(ctx context.Context, run *audit.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE audit_runs SET
			status = ?, completed_at = ?, error = ?,
			total_records = ?, total_matches = ?, total_underpaid = ?, total_overpaid = ?,
			total_exact = ?, total_minor = ?, total_major = ?,
			total_unsequenced = ?, total_no_plan = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		string(run.Status), formatTimePtr(run.CompletedAt), nullString(run.Error),
		run.Totals.Records, run.Totals.Matches, run.Totals.Underpaid, run.Totals.Overpaid,
		run.Totals.Exact, run.Totals.Minor, run.Totals.Major,
		run.Totals.Unsequenced, run.Totals.NoPlan,
		run.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s: %w", run.ID, audit.ErrRunNotFound)
	}
	return nil
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*audit.Run, error) {
	runs, err := s.queryRuns(ctx, selectRun+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, audit.ErrRunNotFound)
	}
	return runs[0], nil
}

// ListRuns returns all runs in creation order.
func (s *Store) ListRuns(ctx context.Context) ([]*audit.Run, error) {
	return s.queryRuns(ctx, selectRun+" ORDER BY rowid")
}

const selectRun = `
	SELECT id, status, started_at, completed_at, error,
		total_records, total_matches, total_underpaid, total_overpaid,
		total_exact, total_minor, total_major, total_unsequenced, total_no_plan
	FROM audit_runs`

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]*audit.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*audit.Run
	for rows.Next() {
		var run audit.Run
		var status, startedAt string
		var completedAt, runErr sql.NullString
		if err := rows.Scan(
			&run.ID, &status, &startedAt, &completedAt, &runErr,
			&run.Totals.Records, &run.Totals.Matches, &run.Totals.Underpaid, &run.Totals.Overpaid,
			&run.Totals.Exact, &run.Totals.Minor, &run.Totals.Major,
			&run.Totals.Unsequenced, &run.Totals.NoPlan,
		); err != nil {
			return nil, err
		}
		run.Status = audit.RunStatus(status)
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.CompletedAt = parseTimePtr(completedAt)
		run.Error = runErr.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// =============================================================================
// AUDIT OUTPUTS (audit.ReportStore)
// =============================================================================

// SaveResults replaces a run's results atomically.
func (s *Store) SaveResults(ctx context.Context, runID string, results []audit.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM audit_results WHERE run_id = ?", runID); err != nil {
		return err
	}

	query := `
		INSERT INTO audit_results (run_id, position, record_id, agent_name,
			actual_company_dollar, expected_company_dollar, difference, status,
			breakdown_json, notes_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i, r := range results {
		breakdown, err := json.Marshal(r.Breakdown)
		if err != nil {
			return fmt.Errorf("failed to marshal breakdown: %w", err)
		}
		var notes *string
		if len(r.Notes) > 0 {
			raw, err := json.Marshal(r.Notes)
			if err != nil {
				return fmt.Errorf("failed to marshal notes: %w", err)
			}
			n := string(raw)
			notes = &n
		}
		if _, err := sqlTx.ExecContext(ctx, query,
			runID, i, string(r.RecordID), string(r.AgentName),
			int64(r.ActualCompanyDollar), int64(r.ExpectedCompanyDollar),
			int64(r.Difference), string(r.Status),
			string(breakdown), notes,
		); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// ListResults returns a run's results in report order.
func (s *Store) ListResults(ctx context.Context, runID string) ([]audit.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT record_id, agent_name, actual_company_dollar, expected_company_dollar, difference, status, breakdown_json, notes_json FROM audit_results WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []audit.Result
	for rows.Next() {
		var r audit.Result
		var recordID, agentName, status string
		var actual, expected, difference int64
		var breakdown, notes sql.NullString
		if err := rows.Scan(&recordID, &agentName, &actual, &expected, &difference, &status, &breakdown, &notes); err != nil {
			return nil, err
		}
		r.RecordID = commission.RecordID(recordID)
		r.AgentName = commission.AgentName(agentName)
		r.ActualCompanyDollar = commission.Cents(actual)
		r.ExpectedCompanyDollar = commission.Cents(expected)
		r.Difference = commission.Cents(difference)
		r.Status = audit.Status(status)
		if breakdown.Valid && breakdown.String != "" {
			if err := json.Unmarshal([]byte(breakdown.String), &r.Breakdown); err != nil {
				return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
			}
		}
		if notes.Valid && notes.String != "" {
			if err := json.Unmarshal([]byte(notes.String), &r.Notes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SaveVariances replaces a run's variance items atomically.
func (s *Store) SaveVariances(ctx context.Context, runID string, items []audit.VarianceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM audit_variances WHERE run_id = ?", runID); err != nil {
		return err
	}

	query := `
		INSERT INTO audit_variances (run_id, position, record_id, agent_name,
			reported_commission, naive_commission, deviation_pct, no_baseline, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i, item := range items {
		if _, err := sqlTx.ExecContext(ctx, query,
			runID, i, string(item.RecordID), string(item.AgentName),
			int64(item.ReportedCommission), int64(item.NaiveCommission),
			item.DeviationPct.String(), item.NoBaseline, string(item.Category),
		); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// ListVariances returns a run's variance items in report order.
func (s *Store) ListVariances(ctx context.Context, runID string) ([]audit.VarianceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT record_id, agent_name, reported_commission, naive_commission, deviation_pct, no_baseline, category FROM audit_variances WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []audit.VarianceItem
	for rows.Next() {
		var item audit.VarianceItem
		var recordID, agentName, deviation, category string
		var reported, naive int64
		if err := rows.Scan(&recordID, &agentName, &reported, &naive, &deviation, &item.NoBaseline, &category); err != nil {
			return nil, err
		}
		item.RecordID = commission.RecordID(recordID)
		item.AgentName = commission.AgentName(agentName)
		item.ReportedCommission = commission.Cents(reported)
		item.NaiveCommission = commission.Cents(naive)
		item.DeviationPct, _ = decimal.NewFromString(deviation)
		item.Category = audit.VarianceCategory(category)
		items = append(items, item)
	}
	return items, rows.Err()
}

// =============================================================================
// AGENT SUMMARIES (report.SummaryStore)
// =============================================================================

// SaveSummaries replaces a run's agent summaries atomically.
func (s *Store) SaveSummaries(ctx context.Context, runID string, summaries []report.AgentSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM agent_summaries WHERE run_id = ?", runID); err != nil {
		return err
	}

	query := `
		INSERT INTO agent_summaries (run_id, position, agent_name, period_key,
			period_start, period_end, plan_id, transactions, total_gci, total_agent_net,
			company_dollar_paid, royalty_paid, percent_to_cap, is_capped, current_split,
			matches, underpaid, overpaid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i, sum := range summaries {
		if _, err := sqlTx.ExecContext(ctx, query,
			runID, i, string(sum.AgentName), sum.PeriodKey,
			sum.Period.Start.UTC().Format(time.RFC3339), sum.Period.End.UTC().Format(time.RFC3339),
			nullString(string(sum.PlanID)), sum.Transactions,
			int64(sum.TotalGCI), int64(sum.TotalAgentNet),
			int64(sum.CompanyDollarPaid), int64(sum.RoyaltyPaid),
			sum.PercentToCap.String(), sum.IsCapped, sum.CurrentSplit.String(),
			sum.Matches, sum.Underpaid, sum.Overpaid,
		); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// ListSummaries returns a run's summaries in report order.
func (s *Store) ListSummaries(ctx context.Context, runID string) ([]report.AgentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT agent_name, period_key, period_start, period_end, plan_id, transactions, total_gci, total_agent_net, company_dollar_paid, royalty_paid, percent_to_cap, is_capped, current_split, matches, underpaid, overpaid FROM agent_summaries WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []report.AgentSummary
	for rows.Next() {
		var sum report.AgentSummary
		var agentName, periodStart, periodEnd, percentToCap, currentSplit string
		var planID sql.NullString
		var gci, net, company, royalty int64
		if err := rows.Scan(
			&agentName, &sum.PeriodKey, &periodStart, &periodEnd, &planID,
			&sum.Transactions, &gci, &net, &company, &royalty,
			&percentToCap, &sum.IsCapped, &currentSplit,
			&sum.Matches, &sum.Underpaid, &sum.Overpaid,
		); err != nil {
			return nil, err
		}
		sum.AgentName = commission.AgentName(agentName)
		sum.Period.Start, _ = time.Parse(time.RFC3339, periodStart)
		sum.Period.End, _ = time.Parse(time.RFC3339, periodEnd)
		sum.PlanID = commission.PlanID(planID.String)
		sum.TotalGCI = commission.Cents(gci)
		sum.TotalAgentNet = commission.Cents(net)
		sum.CompanyDollarPaid = commission.Cents(company)
		sum.RoyaltyPaid = commission.Cents(royalty)
		sum.PercentToCap, _ = decimal.NewFromString(percentToCap)
		sum.CurrentSplit, _ = decimal.NewFromString(currentSplit)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

// Reset clears all data. Dev use only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"agent_summaries", "audit_variances", "audit_results", "audit_runs",
		"adjustment_log", "adjustments", "transaction_records",
		"plan_assignments", "teams", "plans",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
