package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/famille/internal/model"
)

// CatalogStore holds the task, reward and consequence definitions the
// ledger reads from. History entries copy label and value, so editing a
// definition never changes past entries.
type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- Task methods ---

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var active int
	err := scanner.Scan(&t.ID, &t.Title, &t.Description, &t.Points, &active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Active = active != 0
	t.AssignedTo = []int64{}
	return &t, nil
}

const taskCols = `id, title, description, points, active, created_at, updated_at`

func (s *CatalogStore) CreateTask(title, description string, points int, active bool, assignedTo []int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO tasks (title, description, points, active) VALUES (?, ?, ?, ?)`,
		title, description, points, boolInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := replaceAssignments(tx, id, assignedTo); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetTask(id)
}

func replaceAssignments(tx *sql.Tx, taskID int64, memberIDs []int64) error {
	if _, err := tx.Exec(`DELETE FROM task_assignments WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, mID := range memberIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO task_assignments (task_id, member_id) VALUES (?, ?)`,
			taskID, mID,
		); err != nil {
			return fmt.Errorf("assign task to member %d: %w", mID, err)
		}
	}
	return nil
}

func (s *CatalogStore) GetTask(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	assignments, err := s.loadAssignments()
	if err != nil {
		return nil, err
	}
	if ids, ok := assignments[t.ID]; ok {
		t.AssignedTo = ids
	}
	return t, nil
}

// ListTasks returns all tasks, active first, then by title.
func (s *CatalogStore) ListTasks() ([]model.Task, error) {
	rows, err := s.db.Query(`SELECT ` + taskCols + ` FROM tasks ORDER BY active DESC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	rows.Close()

	assignments, err := s.loadAssignments()
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if ids, ok := assignments[tasks[i].ID]; ok {
			tasks[i].AssignedTo = ids
		}
	}
	return tasks, nil
}

// ListTasksForMember returns active tasks assigned to memberID or to nobody.
func (s *CatalogStore) ListTasksForMember(memberID int64) ([]model.Task, error) {
	all, err := s.ListTasks()
	if err != nil {
		return nil, err
	}
	var tasks []model.Task
	for _, t := range all {
		if t.Active && t.AssignedToMember(memberID) {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (s *CatalogStore) loadAssignments() (map[int64][]int64, error) {
	rows, err := s.db.Query(`SELECT task_id, member_id FROM task_assignments ORDER BY task_id, member_id`)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var taskID, memberID int64
		if err := rows.Scan(&taskID, &memberID); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out[taskID] = append(out[taskID], memberID)
	}
	return out, rows.Err()
}

func (s *CatalogStore) UpdateTask(id int64, title, description string, points int, active bool, assignedTo []int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE tasks SET title = ?, description = ?, points = ?, active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, points, boolInt(active), id,
	); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := replaceAssignments(tx, id, assignedTo); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetTask(id)
}

func (s *CatalogStore) DeleteTask(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// --- Reward methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int
	err := scanner.Scan(&r.ID, &r.Title, &r.Description, &r.Cost, &active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Active = active != 0
	return &r, nil
}

const costCols = `id, title, description, cost, active, created_at, updated_at`

func (s *CatalogStore) CreateReward(title, description string, cost int, active bool) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (title, description, cost, active) VALUES (?, ?, ?, ?)`,
		title, description, cost, boolInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetReward(id)
}

func (s *CatalogStore) GetReward(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+costCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListRewards returns all rewards, active first, then by cost.
func (s *CatalogStore) ListRewards() ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT ` + costCols + ` FROM rewards ORDER BY active DESC, cost ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *CatalogStore) UpdateReward(id int64, title, description string, cost int, active bool) (*model.Reward, error) {
	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, cost = ?, active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, cost, boolInt(active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetReward(id)
}

func (s *CatalogStore) DeleteReward(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}

// --- Consequence methods ---

func scanConsequence(scanner interface{ Scan(...any) error }) (*model.Consequence, error) {
	var c model.Consequence
	var active int
	err := scanner.Scan(&c.ID, &c.Title, &c.Description, &c.Cost, &active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Active = active != 0
	return &c, nil
}

func (s *CatalogStore) CreateConsequence(title, description string, cost int, active bool) (*model.Consequence, error) {
	result, err := s.db.Exec(
		`INSERT INTO consequences (title, description, cost, active) VALUES (?, ?, ?, ?)`,
		title, description, cost, boolInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert consequence: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetConsequence(id)
}

func (s *CatalogStore) GetConsequence(id int64) (*model.Consequence, error) {
	row := s.db.QueryRow(`SELECT `+costCols+` FROM consequences WHERE id = ?`, id)
	c, err := scanConsequence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get consequence: %w", err)
	}
	return c, nil
}

func (s *CatalogStore) ListConsequences() ([]model.Consequence, error) {
	rows, err := s.db.Query(`SELECT ` + costCols + ` FROM consequences ORDER BY active DESC, cost ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list consequences: %w", err)
	}
	defer rows.Close()

	var consequences []model.Consequence
	for rows.Next() {
		c, err := scanConsequence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consequence: %w", err)
		}
		consequences = append(consequences, *c)
	}
	return consequences, rows.Err()
}

func (s *CatalogStore) UpdateConsequence(id int64, title, description string, cost int, active bool) (*model.Consequence, error) {
	_, err := s.db.Exec(
		`UPDATE consequences SET title = ?, description = ?, cost = ?, active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, cost, boolInt(active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update consequence: %w", err)
	}
	return s.GetConsequence(id)
}

func (s *CatalogStore) DeleteConsequence(id int64) error {
	_, err := s.db.Exec(`DELETE FROM consequences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete consequence: %w", err)
	}
	return nil
}
